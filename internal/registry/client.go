package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/version"
)

const (
	// DefaultBaseURL is the public GitHub API.
	DefaultBaseURL = "https://api.github.com"

	acceptHeader = "application/vnd.github+json"

	// maxErrorBody limits how much of an error response is kept.
	maxErrorBody = 4096
)

// errRepositoryRequired is returned when no repository is configured.
var errRepositoryRequired = errors.New("repository must be provided")

// Source is the release metadata and download capability used by the updater.
type Source interface {
	FetchLatest(ctx context.Context) (*release.Release, error)
	FetchAll(ctx context.Context) ([]release.Release, error)
	FetchByTag(ctx context.Context, tag string) (*release.Release, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Client is a GitHub releases client for one repository.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client
	// baseURL is the API root.
	baseURL string
	// repository is "owner/name".
	repository string
	// token is sent as a bearer token when set.
	token string
	// userAgent identifies the updater.
	userAgent string
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithToken sends an authorization token with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout bounds each request; zero keeps the transport default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			client := *c.httpClient
			client.Timeout = timeout
			c.httpClient = &client
		}
	}
}

// New creates a client for the "owner/name" repository.
func New(repository string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(repository) == "" {
		return nil, errRepositoryRequired
	}

	client := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		repository: strings.Trim(repository, "/"),
		userAgent:  version.UserAgent(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// FetchLatest returns the most recent published release.
func (c *Client) FetchLatest(ctx context.Context) (*release.Release, error) {
	var rel release.Release
	if err := c.getJSON(ctx, c.releasesURL("latest"), &rel); err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}

	return &rel, nil
}

// FetchAll returns the first page of releases, newest first.
func (c *Client) FetchAll(ctx context.Context) ([]release.Release, error) {
	var releases []release.Release
	if err := c.getJSON(ctx, c.releasesURL(), &releases); err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}

	return releases, nil
}

// FetchByTag returns the release with the given tag.
func (c *Client) FetchByTag(ctx context.Context, tag string) (*release.Release, error) {
	var rel release.Release
	if err := c.getJSON(ctx, c.releasesURL("tags", tag), &rel); err != nil {
		return nil, fmt.Errorf("fetch release %s: %w", tag, err)
	}

	return &rel, nil
}

// Download returns the full body of an asset URL.
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, error) {
	response, err := c.do(ctx, assetURL, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", assetURL, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w: %w", assetURL, release.ErrNetwork, err)
	}

	return data, nil
}

// getJSON performs a GET and decodes the JSON body into target.
func (c *Client) getJSON(ctx context.Context, requestURL string, target any) error {
	response, err := c.do(ctx, requestURL, acceptHeader)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", release.ErrNetwork, err)
	}

	if err = json.Unmarshal(data, target); err != nil {
		return &release.APIError{
			Status: response.StatusCode,
			Body:   "decode response: " + err.Error(),
		}
	}

	return nil
}

// do sends a GET request and returns the response of a 2xx status.
// The caller closes the body.
func (c *Client) do(ctx context.Context, requestURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", release.ErrNetwork, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		defer func() {
			_ = response.Body.Close()
		}()

		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

		return nil, &release.APIError{
			Status: response.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	return response, nil
}

// releasesURL builds {base}/repos/{owner}/{repo}/releases[/elements...].
func (c *Client) releasesURL(elements ...string) string {
	escaped := make([]string, 0, len(elements)+3)
	escaped = append(escaped, "repos", c.repository, "releases")

	for _, element := range elements {
		escaped = append(escaped, url.PathEscape(element))
	}

	return c.baseURL + "/" + path.Join(escaped...)
}
