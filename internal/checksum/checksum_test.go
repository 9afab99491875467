package checksum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDigest checks a well-known SHA-256 vector.
func TestDigest(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		Digest([]byte("hello world")))
}

// TestVerify covers matching, case-insensitivity and single byte tampering.
func TestVerify(t *testing.T) {
	t.Parallel()

	payloads := [][]byte{
		{},
		[]byte("test data"),
		[]byte(strings.Repeat("opencode", 1024)),
	}

	for _, data := range payloads {
		sum := Digest(data)
		require.True(t, Verify(data, sum))
		require.True(t, Verify(data, strings.ToUpper(sum)))
		require.True(t, Verify(data, "  "+sum+"\n"))

		if len(data) == 0 {
			continue
		}

		tampered := append([]byte(nil), data...)
		tampered[len(tampered)/2] ^= 0x01
		require.False(t, Verify(tampered, sum))
	}

	require.False(t, Verify([]byte("test data"), "invalid_hash"))
}

// TestParseCompanion accepts bare digests and sha256sum output.
func TestParseCompanion(t *testing.T) {
	t.Parallel()

	sum := Digest([]byte("x"))

	require.Equal(t, sum, ParseCompanion(sum))
	require.Equal(t, sum, ParseCompanion("\n  "+sum+"  \n"))
	require.Equal(t, sum, ParseCompanion(sum+"  opencode-linux-x64.zip\n"))
	require.Empty(t, ParseCompanion(" \n\t"))
}
