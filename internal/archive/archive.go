package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/oshokin/opencode-updater/internal/domain/release"
)

const (
	// dirMode is applied to directories created during extraction.
	dirMode os.FileMode = 0o755

	// executableBits matches any of the user, group or other execute bits.
	executableBits os.FileMode = 0o111
)

// errStopWalk ends the directory walk once an executable is found.
var errStopWalk = errors.New("stop walk")

// extractFunc unpacks data into destDir.
type extractFunc func(data []byte, destDir string) error

// format binds a file extension to its extractor.
type format struct {
	suffix  string
	extract extractFunc
}

// formats is checked in order, so longer suffixes come first.
//
//nolint:gochecknoglobals // Static dispatch table.
var formats = []format{
	{suffix: ".tar.gz", extract: extractTarGz},
	{suffix: ".tgz", extract: extractTarGz},
	{suffix: ".zip", extract: extractZip},
}

// IsSupported reports whether name carries a supported archive extension.
func IsSupported(name string) bool {
	_, ok := lookup(name)

	return ok
}

// Extract unpacks data into destDir using the format implied by assetName
// and returns the path of the first executable file found.
func Extract(data []byte, assetName, destDir string) (string, error) {
	extract, ok := lookup(assetName)
	if !ok {
		return "", fmt.Errorf("%w: %s", release.ErrUnsupportedFormat, assetName)
	}

	if err := os.MkdirAll(destDir, dirMode); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", release.ErrExtractionFailed, destDir, err)
	}

	if err := extract(data, destDir); err != nil {
		return "", fmt.Errorf("%w: %s: %w", release.ErrExtractionFailed, assetName, err)
	}

	return FindExecutable(destDir)
}

// FindExecutable walks root in lexicographic order and returns the first
// regular file with any executable permission bit.
func FindExecutable(root string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		if info.Mode().Perm()&executableBits == 0 {
			return nil
		}

		found = path

		return errStopWalk
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return "", fmt.Errorf("scan %s: %w", root, err)
	}

	if found == "" {
		return "", fmt.Errorf("%w in %s", release.ErrNoExecutableFound, root)
	}

	return found, nil
}

func lookup(name string) (extractFunc, bool) {
	lower := strings.ToLower(name)
	for _, f := range formats {
		if strings.HasSuffix(lower, f.suffix) {
			return f.extract, true
		}
	}

	return nil, false
}

func extractZip(data []byte, destDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}

	for _, file := range reader.File {
		path, err := securejoin.SecureJoin(destDir, file.Name)
		if err != nil {
			return err
		}

		mode := file.Mode()

		switch {
		case mode.IsDir():
			if err = os.MkdirAll(path, dirMode); err != nil {
				return err
			}
		case mode.IsRegular():
			if err = writeZipEntry(file, path, mode.Perm()); err != nil {
				return err
			}
		default:
			// Links and special files are never needed to run the binary.
			continue
		}
	}

	return nil
}

func writeZipEntry(file *zip.File, path string, perm os.FileMode) error {
	src, err := file.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	return writeFile(path, src, perm)
}

func extractTarGz(data []byte, destDir string) error {
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		path, err := securejoin.SecureJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(path, dirMode); err != nil {
				return err
			}
		case tar.TypeReg:
			//nolint:gosec // Mode comes from the archive header and is masked to permission bits.
			if err = writeFile(path, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		default:
			continue
		}
	}
}

// writeFile copies src into path and applies perm explicitly so the umask
// does not strip bits recorded in the archive.
func writeFile(path string, src io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	//nolint:gosec // Release archives come from the configured registry.
	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	return os.Chmod(path, perm)
}
