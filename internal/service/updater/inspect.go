package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/gosuri/uitable"

	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/logger"
	"github.com/oshokin/opencode-updater/internal/repository/cache"
)

const (
	// maxColumnWidth bounds table cells.
	maxColumnWidth = 40
	// checksumPreview is how much of a digest the table shows.
	checksumPreview = 12
	// dateLayout is used for dates in tables and notes.
	dateLayout = "2006-01-02 15:04"
	// wordWrap is the width of rendered notes.
	wordWrap = 100
)

// ListVersions prints the installed versions and the published releases.
func (u *Updater) ListVersions(ctx context.Context) error {
	installed, err := u.store.List(ctx)
	if err != nil {
		return err
	}

	currentVersion := ""
	if current, currentErr := u.store.Current(ctx); currentErr == nil {
		currentVersion = current.Version
	}

	table := uitable.New()
	table.MaxColWidth = maxColumnWidth
	table.AddRow("INSTALLED", "INSTALLED AT", "CHECKSUM", "CURRENT")

	for _, record := range installed {
		table.AddRow(record.Version, formatDate(record.InstalledAt), shortChecksum(record.Checksum),
			marker(record.Version == currentVersion))
	}

	if currentVersion != "" && !u.store.Has(currentVersion) {
		table.AddRow(currentVersion, "unknown", "-", marker(true))
	}

	_, _ = fmt.Fprintln(u.out, table)
	_, _ = fmt.Fprintln(u.out)

	releases, err := u.releases(ctx)
	if err != nil {
		return err
	}

	available := uitable.New()
	available.MaxColWidth = maxColumnWidth
	available.AddRow("AVAILABLE", "PUBLISHED", "NAME", "STATUS")

	for i := range releases {
		rel := &releases[i]
		version := rel.Version()

		status := ""
		switch {
		case version == currentVersion:
			status = "current"
		case u.store.Has(version):
			status = "installed"
		}

		available.AddRow(version, formatDate(rel.PublishedAt), rel.Title(), status)
	}

	_, _ = fmt.Fprintln(u.out, available)

	return nil
}

// Changelog prints the notes of version, or of the latest release when
// version is empty.
func (u *Updater) Changelog(ctx context.Context, version string) error {
	var (
		rel *release.Release
		err error
	)

	if version == "" {
		rel, err = u.source.FetchLatest(ctx)
	} else {
		rel, err = u.findRelease(ctx, version)
	}

	if err != nil {
		return err
	}

	return u.render(formatReleaseNotes(rel))
}

// Compare prints the notes of every release after from up to and including to.
func (u *Updater) Compare(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return errCompareArguments
	}

	fromVersion, err := release.ParseVersion(from)
	if err != nil {
		return err
	}

	toVersion, err := release.ParseVersion(to)
	if err != nil {
		return err
	}

	releases, err := u.releases(ctx)
	if err != nil {
		return err
	}

	var fromRelease, toRelease *release.Release

	between := make([]*release.Release, 0, len(releases))

	for i := range releases {
		rel := &releases[i]

		parsed, parseErr := release.ParseVersion(rel.TagName)
		if parseErr != nil {
			continue
		}

		switch {
		case parsed.Equal(fromVersion):
			fromRelease = rel
		case parsed.Equal(toVersion):
			toRelease = rel
		}

		if parsed.GreaterThan(fromVersion) && !parsed.GreaterThan(toVersion) {
			between = append(between, rel)
		}
	}

	if fromRelease == nil {
		return fmt.Errorf("%w: release %s", release.ErrVersionNotFound, fromVersion)
	}

	if toRelease == nil {
		return fmt.Errorf("%w: release %s", release.ErrVersionNotFound, toVersion)
	}

	return u.render(formatComparison(fromRelease, toRelease, between))
}

// releases returns the release list, preferring a fresh cached snapshot.
func (u *Updater) releases(ctx context.Context) ([]release.Release, error) {
	snapshot, err := u.cache.Load(ctx)
	if err == nil {
		logger.Debug(ctx, "Using cached release list")
		return snapshot.Releases, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.WarnKV(ctx, "Release cache unreadable", "error", err)
	}

	releases, err := u.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	if err = u.cache.Save(ctx, releases); err != nil {
		logger.WarnKV(ctx, "Unable to cache the release list", "error", err)
	}

	return releases, nil
}

// findRelease looks version up in the release list and falls back to the
// tag endpoint for releases older than the first page.
func (u *Updater) findRelease(ctx context.Context, version string) (*release.Release, error) {
	parsed, err := release.ParseVersion(version)
	if err != nil {
		return nil, err
	}

	releases, err := u.releases(ctx)
	if err != nil {
		return nil, err
	}

	for i := range releases {
		if candidate, parseErr := release.ParseVersion(releases[i].TagName); parseErr == nil && candidate.Equal(parsed) {
			return &releases[i], nil
		}
	}

	rel, err := u.source.FetchByTag(ctx, "v"+parsed.String())
	if err != nil {
		var apiErr *release.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: release %s", release.ErrVersionNotFound, parsed)
		}

		return nil, err
	}

	return rel, nil
}

// render writes markdown through glamour, falling back to the raw text.
func (u *Updater) render(markdown string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(u.markdownStyle),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		_, err = fmt.Fprintln(u.out, markdown)
		return err
	}

	out, err := renderer.Render(markdown)
	if err != nil {
		out = markdown
	}

	_, err = fmt.Fprintln(u.out, strings.TrimSpace(out))

	return err
}

func formatReleaseNotes(rel *release.Release) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s (%s)\n\n", rel.Title(), rel.TagName)
	fmt.Fprintf(&b, "Published: %s\n\n", formatDate(rel.PublishedAt))
	b.WriteString(rel.Notes())
	b.WriteString("\n")

	return b.String()
}

func formatComparison(from, to *release.Release, between []*release.Release) string {
	var b strings.Builder

	b.WriteString("# Version comparison\n\n")
	fmt.Fprintf(&b, "- From: %s (published %s)\n", from.TagName, formatDate(from.PublishedAt))
	fmt.Fprintf(&b, "- To: %s (published %s)\n\n", to.TagName, formatDate(to.PublishedAt))

	if len(between) == 0 {
		b.WriteString("No releases in between.\n")
		return b.String()
	}

	for _, rel := range between {
		fmt.Fprintf(&b, "## Changes in %s\n\n%s\n\n", rel.TagName, rel.Notes())
	}

	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	return t.UTC().Format(dateLayout)
}

func shortChecksum(sum string) string {
	if sum == "" {
		return "-"
	}

	if len(sum) > checksumPreview {
		return sum[:checksumPreview]
	}

	return sum
}

func marker(current bool) string {
	if current {
		return "*"
	}

	return ""
}
