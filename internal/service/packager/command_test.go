package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opencode-updater/internal/checksum"
)

// TestRun_WritesCompanions creates a digest file next to every input.
func TestRun_WritesCompanions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "opencode-linux-x64.zip")
	second := filepath.Join(dir, "opencode-linux-x64.tar.gz")

	require.NoError(t, os.WriteFile(first, []byte("zip bytes"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("tar bytes"), 0o600))

	written, err := Run(context.Background(), &Options{Files: []string{first, second}})
	require.NoError(t, err)
	require.Equal(t, []string{first + checksum.Suffix, second + checksum.Suffix}, written)

	body, err := os.ReadFile(first + checksum.Suffix)
	require.NoError(t, err)
	require.Equal(t, checksum.Digest([]byte("zip bytes"))+"\n", string(body))
	require.Equal(t, checksum.Digest([]byte("zip bytes")), checksum.ParseCompanion(string(body)))
}

// TestRun_Errors rejects empty input and missing files.
func TestRun_Errors(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Options{})
	require.Error(t, err)

	written, err := Run(context.Background(), &Options{Files: []string{filepath.Join(t.TempDir(), "missing.zip")}})
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, written)
}
