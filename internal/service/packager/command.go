package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/opencode-updater/internal/archive"
	"github.com/oshokin/opencode-updater/internal/checksum"
	"github.com/oshokin/opencode-updater/internal/logger"
)

// companionMode is the permission of written checksum files.
const companionMode os.FileMode = 0o644

// errNoFiles is returned when no files were given.
var errNoFiles = errors.New("at least one file must be provided")

// Options contains inputs for the packager entry point.
type Options struct {
	// Files are the artifacts to checksum.
	Files []string
}

// Run writes a checksum companion next to every file. It stops at the first
// failure and returns the companions written so far.
func Run(ctx context.Context, opts *Options) ([]string, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "packager")

	if opts == nil || len(opts.Files) == 0 {
		return nil, errNoFiles
	}

	written := make([]string, 0, len(opts.Files))

	for _, fileName := range opts.Files {
		companion, err := WriteCompanion(fileName)
		if err != nil {
			return written, err
		}

		if !archive.IsSupported(fileName) {
			logger.WarnKV(ctx, "File is not an archive the updater can extract", "file", fileName)
		}

		logger.InfoKV(ctx, "Checksum written", "file", companion)

		written = append(written, companion)
	}

	return written, nil
}

// WriteCompanion writes "<fileName>.sha256" with the hex digest and a newline.
func WriteCompanion(fileName string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", fileName, err)
	}

	companion := fileName + checksum.Suffix
	if err = os.WriteFile(companion, []byte(checksum.Digest(contents)+"\n"), companionMode); err != nil {
		return "", fmt.Errorf("write %s: %w", companion, err)
	}

	return companion, nil
}
