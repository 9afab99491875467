package release

import (
	"strings"
	"time"
)

// DefaultReleaseNotes is used when a release carries no body.
const DefaultReleaseNotes = "No release notes available."

// Asset is a downloadable artifact attached to a release.
type Asset struct {
	// Name is the file name of the artifact.
	Name string `json:"name"`
	// DownloadURL is the direct download location.
	DownloadURL string `json:"browser_download_url"`
}

// Release describes one published release of the managed binary.
// Fields absent from the registry response stay at their zero values.
type Release struct {
	// TagName is the git tag of the release, e.g. "v1.2.3".
	TagName string `json:"tag_name"`
	// Name is the display name, empty when the registry does not set one.
	Name string `json:"name,omitempty"`
	// PublishedAt is the publication time, zero for unpublished releases.
	PublishedAt time.Time `json:"published_at"`
	// Body holds the release notes in markdown.
	Body string `json:"body"`
	// Assets lists the artifacts in registry order.
	Assets []Asset `json:"assets"`
}

// Version returns the tag without the leading "v".
func (r *Release) Version() string {
	return NormalizeVersion(r.TagName)
}

// Title returns the display name, falling back to the tag.
func (r *Release) Title() string {
	if r.Name != "" {
		return r.Name
	}

	return r.TagName
}

// Notes returns the release body or DefaultReleaseNotes when it is empty.
func (r *Release) Notes() string {
	if strings.TrimSpace(r.Body) == "" {
		return DefaultReleaseNotes
	}

	return r.Body
}

// CachedReleaseList is a snapshot of the release list with its fetch time.
type CachedReleaseList struct {
	// Releases is the list returned by the registry.
	Releases []Release `json:"releases"`
	// FetchedAt is when the list was retrieved.
	FetchedAt time.Time `json:"fetched_at"`
}

// IsFresh reports whether the snapshot is younger than ttl at the given moment.
func (c *CachedReleaseList) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.FetchedAt) < ttl
}

// VersionRecord is the persisted metadata of one installed build.
// Records are immutable once written; Version is the identity key.
type VersionRecord struct {
	// Version is the semantic version without the "v" prefix.
	Version string `json:"version"`
	// TagName is the release tag the build came from.
	TagName string `json:"tag_name"`
	// ReleaseDate is the publication time of the release.
	ReleaseDate time.Time `json:"release_date"`
	// DownloadURL is where the archive was fetched from, empty for backups.
	DownloadURL string `json:"download_url"`
	// Checksum is the verified SHA-256 of the archive, empty when unverified.
	Checksum string `json:"checksum"`
	// InstalledAt is when the record was created.
	InstalledAt time.Time `json:"installed_at"`
	// InstallPath is the system location the binary is installed to.
	InstallPath string `json:"install_path"`
	// ReleaseNotes is the release body at install time.
	ReleaseNotes string `json:"release_notes"`
}

// NewVersionRecord builds a record for a freshly downloaded release.
func NewVersionRecord(rel *Release, downloadURL, checksum, installPath string, now time.Time) *VersionRecord {
	releaseDate := rel.PublishedAt
	if releaseDate.IsZero() {
		releaseDate = now
	}

	return &VersionRecord{
		Version:      rel.Version(),
		TagName:      rel.TagName,
		ReleaseDate:  releaseDate.UTC(),
		DownloadURL:  downloadURL,
		Checksum:     checksum,
		InstalledAt:  now.UTC(),
		InstallPath:  installPath,
		ReleaseNotes: rel.Notes(),
	}
}

// NewDetectedRecord synthesizes a record for a binary found on the system
// without tracking data. Timestamps are the query time, not the real install
// time, and the download URL and checksum are empty.
func NewDetectedRecord(version, installPath, notes string, now time.Time) *VersionRecord {
	version = NormalizeVersion(version)

	return &VersionRecord{
		Version:      version,
		TagName:      "v" + version,
		ReleaseDate:  now.UTC(),
		InstalledAt:  now.UTC(),
		InstallPath:  installPath,
		ReleaseNotes: notes,
	}
}
