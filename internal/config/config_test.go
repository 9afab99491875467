package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required formats and the defaults it fills in.
func TestValidate(t *testing.T) {
	t.Parallel()

	settings := &Config{StorageDir: t.TempDir()}
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultRepository, settings.Repository)
	require.Equal(t, DefaultAPIURL, settings.APIURL)
	require.Equal(t, DefaultBinaryName, settings.BinaryName)
	require.Equal(t, DefaultInstallPath, settings.InstallPath)
	require.Equal(t, DefaultAssets(), settings.DefaultAssets)
	require.Equal(t, DefaultKeepVersions, settings.KeepVersions)
	require.Equal(t, DefaultLogLevel, settings.LogLevel)

	// Bad repository.
	err := Validate(&Config{Repository: "just-a-name", StorageDir: t.TempDir()})
	require.Error(t, err)

	// Bad API URL.
	err = Validate(&Config{APIURL: "not a url", StorageDir: t.TempDir()})
	require.Error(t, err)

	// Negative retention.
	err = Validate(&Config{KeepVersions: -1, StorageDir: t.TempDir()})
	require.Error(t, err)

	require.Error(t, Validate(nil))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "settings.yaml")

	settings := &Config{
		Repository:   "acme/tool",
		APIURL:       "https://github.example.com/api/v3",
		BinaryName:   "tool",
		InstallPath:  "/opt/bin/tool",
		StorageDir:   filepath.Join(dir, "storage"),
		KeepVersions: 5,
		Timeout:      30 * time.Second,
		UseSudo:      true,
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_MissingExplicitPath fails instead of silently using defaults.
func TestLoad_MissingExplicitPath(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
