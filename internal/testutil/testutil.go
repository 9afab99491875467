// Package testutil provides helpers shared by package tests: in-memory
// release archives and fakes for the updater capabilities.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is a single file placed into a generated archive.
type Entry struct {
	// Name is the path inside the archive.
	Name string
	// Body is the file content.
	Body []byte
	// Mode holds the permission bits recorded in the archive.
	Mode os.FileMode
}

// ZipArchive builds a zip archive in memory.
func ZipArchive(t *testing.T, entries ...Entry) []byte {
	t.Helper()

	var buffer bytes.Buffer

	writer := zip.NewWriter(&buffer)

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:   entry.Name,
			Method: zip.Deflate,
		}
		header.SetMode(entry.Mode)

		w, err := writer.CreateHeader(header)
		require.NoError(t, err)

		_, err = w.Write(entry.Body)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return buffer.Bytes()
}

// TarGzArchive builds a gzip-compressed tar archive in memory.
func TarGzArchive(t *testing.T, entries ...Entry) []byte {
	t.Helper()

	var buffer bytes.Buffer

	gzipWriter := gzip.NewWriter(&buffer)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, entry := range entries {
		header := &tar.Header{
			Name:     entry.Name,
			Mode:     int64(entry.Mode.Perm()),
			Size:     int64(len(entry.Body)),
			Typeflag: tar.TypeReg,
		}

		require.NoError(t, tarWriter.WriteHeader(header))

		_, err := tarWriter.Write(entry.Body)
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzipWriter.Close())

	return buffer.Bytes()
}

// FakeInstaller records install calls and optionally fails or runs a hook.
type FakeInstaller struct {
	// Err is returned from every Install call when set.
	Err error
	// Hook runs before Err is returned, letting tests disturb the store.
	Hook func(binaryPath string)

	mu       sync.Mutex
	calls    []string
	payloads [][]byte
}

// Install records the call and the binary content.
func (f *FakeInstaller) Install(_ context.Context, binaryPath string) error {
	payload, _ := os.ReadFile(binaryPath) //nolint:gosec // Test helper reads paths under t.TempDir.

	f.mu.Lock()
	f.calls = append(f.calls, binaryPath)
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	if f.Hook != nil {
		f.Hook(binaryPath)
	}

	return f.Err
}

// Calls returns the binary paths passed to Install.
func (f *FakeInstaller) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

// Payloads returns the binary contents seen by Install.
func (f *FakeInstaller) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([][]byte(nil), f.payloads...)
}

// FakeSelector always picks Index and records the offered options.
type FakeSelector struct {
	// Index is returned from Choose.
	Index int
	// Err is returned from Choose when set.
	Err error
	// Offered holds the options of the last call.
	Offered []string
}

// Choose records options and returns the configured index.
func (f *FakeSelector) Choose(_ context.Context, options []string) (int, error) {
	f.Offered = append([]string(nil), options...)

	return f.Index, f.Err
}
