package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseVersion accepts the optional "v" prefix and rejects partial or suffixed versions.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	withPrefix, err := ParseVersion("v1.2.3")
	require.NoError(t, err)

	plain, err := ParseVersion("1.2.3")
	require.NoError(t, err)

	require.True(t, withPrefix.Equal(plain))
	require.Equal(t, uint64(1), plain.Major())
	require.Equal(t, uint64(2), plain.Minor())
	require.Equal(t, uint64(3), plain.Patch())

	for _, bad := range []string{"1.2", "invalid", "", "1.2.3.4", "v", "1.2.3-rc.1", "1.2.3+a", "v1.2.3-beta+build"} {
		_, err = ParseVersion(bad)
		require.ErrorIs(t, err, ErrInvalidVersionFormat, bad)
	}
}

// TestCompareVersions checks ordering across every component.
func TestCompareVersions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.4", -1},
		{"1.2.4", "1.2.3", 1},
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"1.3.0", "1.2.9", 1},
		{"2.0.0", "1.9.9", 1},
		{"0.10.0", "0.9.0", 1},
	}

	for _, c := range cases {
		got, err := CompareVersions(c.a, c.b)
		require.NoError(t, err)
		require.Equal(t, c.want, got, "%s vs %s", c.a, c.b)
	}

	_, err := CompareVersions("1.2", "1.2.3")
	require.ErrorIs(t, err, ErrInvalidVersionFormat)

	_, err = CompareVersions("1.2.3-rc.1", "1.2.3")
	require.ErrorIs(t, err, ErrInvalidVersionFormat)
}
