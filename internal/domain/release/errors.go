package release

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionNotFound is returned when a version is not stored locally.
	ErrVersionNotFound = errors.New("version not found")
	// ErrAssetNotFound is returned when no release asset matches the selection.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrNetwork wraps transport level failures.
	ErrNetwork = errors.New("network error")
	// ErrAPI is matched by every *APIError.
	ErrAPI = errors.New("github api error")
	// ErrStorage wraps failures of the local version store.
	ErrStorage = errors.New("storage error")
	// ErrPermission is returned when the system binary cannot be written.
	ErrPermission = errors.New("permission error")
	// ErrChecksumMismatch is matched by every *ChecksumMismatchError.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidVersionFormat is returned for strings that are not MAJOR.MINOR.PATCH.
	ErrInvalidVersionFormat = errors.New("invalid version format")
	// ErrUnsupportedFormat is returned for archives with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrExtractionFailed is returned for corrupt or truncated archives.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrNoExecutableFound is returned when an archive holds no executable file.
	ErrNoExecutableFound = errors.New("no executable found")
	// ErrRollbackFailed marks a rollback that installed the binary but could
	// not move the current pointer, leaving the system and the store diverged.
	ErrRollbackFailed = errors.New("rollback failed")
)

// APIError is a non-success response of the release registry.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Body is the response body, possibly truncated.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrAPI, e.Status, e.Body)
}

// Is makes errors.Is(err, ErrAPI) match.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// ChecksumMismatchError reports a payload whose digest differs from the
// published one.
type ChecksumMismatchError struct {
	// Expected is the published digest.
	Expected string
	// Actual is the digest of the downloaded payload.
	Actual string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrChecksumMismatch, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrChecksumMismatch) match.
func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
