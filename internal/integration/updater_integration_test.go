package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opencode-updater/internal/config"
	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/repository/versions"
	"github.com/oshokin/opencode-updater/internal/service/packager"
	"github.com/oshokin/opencode-updater/internal/service/updater"
	"github.com/oshokin/opencode-updater/internal/testutil"
)

const (
	assetName  = "opencode-linux-x64.zip"
	binaryBody = "#!/bin/sh\necho v1.2.3\n"
)

// publishRelease serves a single release whose archive and checksum come from dir.
func publishRelease(t *testing.T, dir string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	latest := release.Release{
		TagName: "v1.2.3",
		Body:    "Integration release",
		Assets: []release.Asset{
			{Name: assetName, DownloadURL: ts.URL + "/download/" + assetName},
			{Name: assetName + ".sha256", DownloadURL: ts.URL + "/download/" + assetName + ".sha256"},
		},
	}

	mux.HandleFunc("/repos/sst/opencode/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(latest)
	})
	mux.Handle("/download/", http.StripPrefix("/download/", http.FileServer(http.Dir(dir))))

	return ts
}

// TestUpdater_Run_InstallsRelease packages an archive, serves it over HTTP and
// verifies the updater installs it, records it and then reports it as current.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestUpdater_Run_InstallsRelease(t *testing.T) {
	dir := t.TempDir()

	// Prepare the published archive and its checksum companion.
	publishDir := filepath.Join(dir, "publish")
	require.NoError(t, os.MkdirAll(publishDir, 0o755))

	archivePath := filepath.Join(publishDir, assetName)
	payload := testutil.ZipArchive(t, testutil.Entry{Name: "opencode", Body: []byte(binaryBody), Mode: 0o755})
	require.NoError(t, os.WriteFile(archivePath, payload, 0o600))

	written, err := packager.Run(context.Background(), &packager.Options{Files: []string{archivePath}})
	require.NoError(t, err)
	require.Len(t, written, 1)

	ts := publishRelease(t, publishDir)

	// Create configuration file pointing to the test HTTP server.
	installPath := filepath.Join(dir, "bin", "opencode")
	require.NoError(t, os.MkdirAll(filepath.Dir(installPath), 0o755))

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		APIURL:      ts.URL,
		InstallPath: installPath,
		StorageDir:  filepath.Join(dir, "storage"),
	}

	require.NoError(t, config.Save(cfgPath, cfg))

	var out bytes.Buffer

	options := &updater.Options{
		ConfigPath:   cfgPath,
		Action:       updater.ActionUpdate,
		KeepVersions: -1,
		Extra: []updater.Option{
			updater.WithOutput(&out),
			updater.WithProcessLister(func(string) ([]int, error) { return nil, nil }),
		},
	}

	require.NoError(t, updater.Run(context.Background(), options))
	require.Contains(t, out.String(), "Updated opencode to version 1.2.3")

	installed, err := os.ReadFile(installPath)
	require.NoError(t, err)
	require.Equal(t, binaryBody, string(installed))

	target, err := os.Readlink(filepath.Join(cfg.StorageDir, versions.CurrentLink))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(versions.VersionsDir, "1.2.3"), target)

	metadata, err := os.ReadFile(filepath.Join(cfg.StorageDir, versions.VersionsDir, "1.2.3", versions.MetadataFilename))
	require.NoError(t, err)

	var record release.VersionRecord
	require.NoError(t, json.Unmarshal(metadata, &record))
	require.NotEmpty(t, record.Checksum)
	require.Equal(t, "Integration release", record.ReleaseNotes)

	// A second run finds nothing newer.
	out.Reset()
	require.NoError(t, updater.Run(context.Background(), options))
	require.Contains(t, out.String(), "already the latest version")
}

// TestUpdater_Run_RejectsTamperedArchive leaves the live binary untouched on a checksum mismatch.
func TestUpdater_Run_RejectsTamperedArchive(t *testing.T) {
	dir := t.TempDir()

	publishDir := filepath.Join(dir, "publish")
	require.NoError(t, os.MkdirAll(publishDir, 0o755))

	archivePath := filepath.Join(publishDir, assetName)
	payload := testutil.ZipArchive(t, testutil.Entry{Name: "opencode", Body: []byte(binaryBody), Mode: 0o755})
	require.NoError(t, os.WriteFile(archivePath, payload, 0o600))

	_, err := packager.Run(context.Background(), &packager.Options{Files: []string{archivePath}})
	require.NoError(t, err)

	// Republish different bytes under the same checksum.
	payload[len(payload)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(archivePath, payload, 0o600))

	ts := publishRelease(t, publishDir)

	installPath := filepath.Join(dir, "opencode")
	require.NoError(t, os.WriteFile(installPath, []byte("old build"), 0o600))

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, &config.Config{
		APIURL:      ts.URL,
		InstallPath: installPath,
		StorageDir:  filepath.Join(dir, "storage"),
	}))

	err = updater.Run(context.Background(), &updater.Options{
		ConfigPath:   cfgPath,
		KeepVersions: -1,
		Extra:        []updater.Option{updater.WithOutput(new(bytes.Buffer))},
	})
	require.ErrorIs(t, err, release.ErrChecksumMismatch)

	installed, err := os.ReadFile(installPath)
	require.NoError(t, err)
	require.Equal(t, "old build", string(installed))
}
