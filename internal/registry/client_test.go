package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/version"
)

const latestJSON = `{
	"tag_name": "v1.2.3",
	"name": "Release 1.2.3",
	"published_at": "2025-01-02T03:04:05Z",
	"body": "fixes",
	"assets": [
		{"name": "opencode-linux-x64.zip", "browser_download_url": "https://example.com/a.zip"}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New("sst/opencode", append([]Option{WithBaseURL(server.URL)}, opts...)...)
	require.NoError(t, err)

	return client
}

// TestNew_ValidatesRepository verifies that New rejects empty repositories.
func TestNew_ValidatesRepository(t *testing.T) {
	t.Parallel()

	c, err := New(" ")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestFetchLatest decodes the release and sends the expected headers.
func TestFetchLatest(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/sst/opencode/releases/latest", r.URL.Path)
		require.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		require.Equal(t, version.UserAgent(), r.Header.Get("User-Agent"))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(latestJSON))
	}, WithToken("secret"))

	rel, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", rel.TagName)
	require.Equal(t, "1.2.3", rel.Version())
	require.Equal(t, "Release 1.2.3", rel.Title())
	require.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), rel.PublishedAt.UTC())
	require.Len(t, rel.Assets, 1)
	require.Equal(t, "https://example.com/a.zip", rel.Assets[0].DownloadURL)
}

// TestFetchAll_MissingFields decodes absent fields as zero values.
func TestFetchAll_MissingFields(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/sst/opencode/releases", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`[{"tag_name": "v2.0.0"}, {"tag_name": "v1.0.0", "body": "first"}]`))
	})

	releases, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, releases, 2)
	require.Empty(t, releases[0].Assets)
	require.True(t, releases[0].PublishedAt.IsZero())
	require.Equal(t, release.DefaultReleaseNotes, releases[0].Notes())
	require.Equal(t, "first", releases[1].Notes())
}

// TestFetchByTag_NotFound maps a 404 to an APIError.
func TestFetchByTag_NotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/sst/opencode/releases/tags/v9.9.9", r.URL.Path)
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	_, err := client.FetchByTag(context.Background(), "v9.9.9")
	require.ErrorIs(t, err, release.ErrAPI)

	var apiErr *release.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Contains(t, apiErr.Body, "Not Found")
}

// TestFetchLatest_BadJSON reports undecodable bodies as API errors.
func TestFetchLatest_BadJSON(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := client.FetchLatest(context.Background())

	var apiErr *release.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusOK, apiErr.Status)
}

// TestDownload returns the body and maps transport failures to ErrNetwork.
func TestDownload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))

	client, err := New("sst/opencode", WithTimeout(5*time.Second))
	require.NoError(t, err)

	data, err := client.Download(context.Background(), server.URL+"/asset.zip")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	server.Close()

	_, err = client.Download(context.Background(), server.URL+"/asset.zip")
	require.ErrorIs(t, err, release.ErrNetwork)
}

// TestWithTimeout does not mutate the shared default client.
func TestWithTimeout(t *testing.T) {
	t.Parallel()

	client, err := New("sst/opencode", WithTimeout(time.Second))
	require.NoError(t, err)
	require.Equal(t, time.Second, client.httpClient.Timeout)
	require.Zero(t, http.DefaultClient.Timeout)
}
