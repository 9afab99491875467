package release

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NormalizeVersion trims whitespace and a single leading "v".
func NormalizeVersion(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}

// ParseVersion parses a strict MAJOR.MINOR.PATCH version with an optional
// leading "v". Partial forms like "1.2" and any pre-release or build suffix
// fail with ErrInvalidVersionFormat.
func ParseVersion(version string) (*semver.Version, error) {
	parsed, err := semver.StrictNewVersion(NormalizeVersion(version))
	if err != nil || parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersionFormat, version)
	}

	return parsed, nil
}

// CompareVersions returns -1, 0 or 1 when a is lower than, equal to or
// greater than b.
func CompareVersions(a, b string) (int, error) {
	left, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}

	right, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}

	return left.Compare(right), nil
}
