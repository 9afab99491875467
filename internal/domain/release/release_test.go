package release

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRelease_Helpers covers version, title and notes fallbacks.
func TestRelease_Helpers(t *testing.T) {
	t.Parallel()

	rel := &Release{TagName: "v0.5.1"}
	require.Equal(t, "0.5.1", rel.Version())
	require.Equal(t, "v0.5.1", rel.Title())
	require.Equal(t, DefaultReleaseNotes, rel.Notes())

	rel.Name = "Spring release"
	rel.Body = "* fixes"
	require.Equal(t, "Spring release", rel.Title())
	require.Equal(t, "* fixes", rel.Notes())
}

// TestCachedReleaseList_IsFresh verifies the TTL boundary is exclusive.
func TestCachedReleaseList_IsFresh(t *testing.T) {
	t.Parallel()

	fetched := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	list := &CachedReleaseList{FetchedAt: fetched}

	require.True(t, list.IsFresh(fetched.Add(59*time.Minute), time.Hour))
	require.False(t, list.IsFresh(fetched.Add(time.Hour), time.Hour))
	require.False(t, list.IsFresh(fetched.Add(2*time.Hour), time.Hour))
}

// TestNewVersionRecord falls back to the install time when the release has no date.
func TestNewVersionRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	rec := NewVersionRecord(&Release{TagName: "v1.0.0"}, "https://x/a.zip", "", "/usr/bin/opencode", now)

	require.Equal(t, "1.0.0", rec.Version)
	require.Equal(t, "v1.0.0", rec.TagName)
	require.Equal(t, now, rec.ReleaseDate)
	require.Equal(t, now, rec.InstalledAt)
	require.Empty(t, rec.Checksum)
	require.Equal(t, DefaultReleaseNotes, rec.ReleaseNotes)
}

// TestTypedErrors ensures typed errors match their sentinels through wrapping.
func TestTypedErrors(t *testing.T) {
	t.Parallel()

	apiErr := fmt.Errorf("fetch latest: %w", &APIError{Status: 404, Body: "Not Found"})
	require.ErrorIs(t, apiErr, ErrAPI)

	var target *APIError
	require.True(t, errors.As(apiErr, &target))
	require.Equal(t, 404, target.Status)

	mismatch := fmt.Errorf("verify: %w", &ChecksumMismatchError{Expected: "aa", Actual: "bb"})
	require.ErrorIs(t, mismatch, ErrChecksumMismatch)
	require.Contains(t, mismatch.Error(), "expected aa, got bb")
}
