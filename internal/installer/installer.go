package installer

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"golang.org/x/sys/unix"

	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/logger"

	// Register SHA-256 for go-update checksum validation.
	_ "crypto/sha256"
)

const (
	// DefaultFileMode is the mode of the installed binary.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction validates the applied file.
	DefaultChecksumFunction crypto.Hash = crypto.SHA256
)

var (
	// errTargetRequired is returned when no target path is configured.
	errTargetRequired = errors.New("install target must be provided")
	// errHashUnavailable is returned when the checksum hash is not linked in.
	errHashUnavailable = errors.New("hash function unavailable")
)

// System installs to a fixed target path.
type System struct {
	// target is the live binary location.
	target string
	// useSudo allows elevation when the target directory is not writable.
	useSudo bool
	// sudo is the elevation command.
	sudo string
}

// Option configures System.
type Option func(*System)

// WithSudo enables elevation through sudo.
func WithSudo(enabled bool) Option {
	return func(s *System) {
		s.useSudo = enabled
	}
}

// WithSudoCommand replaces the "sudo" executable.
func WithSudoCommand(command string) Option {
	return func(s *System) {
		if command != "" {
			s.sudo = command
		}
	}
}

// NewSystem creates an installer writing to target.
func NewSystem(target string, opts ...Option) (*System, error) {
	if target == "" {
		return nil, errTargetRequired
	}

	s := &System{
		target: filepath.Clean(target),
		sudo:   "sudo",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Target returns the install location.
func (s *System) Target() string {
	return s.target
}

// Install copies binaryPath over the target.
func (s *System) Install(ctx context.Context, binaryPath string) error {
	data, err := os.ReadFile(filepath.Clean(binaryPath))
	if err != nil {
		return fmt.Errorf("read binary: %w", err)
	}

	if writable(filepath.Dir(s.target)) {
		logger.DebugKV(ctx, "Applying binary", "target", s.target)

		return s.apply(data)
	}

	if !s.useSudo {
		return fmt.Errorf("%w: %s is not writable", release.ErrPermission, filepath.Dir(s.target))
	}

	logger.InfoKV(ctx, "Installing with elevated privileges", "target", s.target)

	return s.installWithSudo(ctx, binaryPath)
}

// apply replaces the target with go-update, validating the SHA-256 of data.
func (s *System) apply(data []byte) error {
	if !DefaultChecksumFunction.Available() {
		return errHashUnavailable
	}

	hasher := DefaultChecksumFunction.New()
	_, _ = hasher.Write(data)

	// go-update renames the target to .old, so it has to exist.
	created := false

	if _, err := os.Stat(s.target); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.OpenFile(s.target, os.O_CREATE|os.O_WRONLY, DefaultFileMode)
		if createErr != nil {
			return mapPermission(fmt.Errorf("create target: %w", createErr))
		}

		_ = placeholder.Close()
		created = true
	}

	options := goupdate.Options{
		TargetPath: s.target,
		TargetMode: DefaultFileMode,
		Checksum:   hasher.Sum(nil),
		Hash:       DefaultChecksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		// A failed first install must not leave the empty placeholder behind.
		if created {
			_ = os.Remove(s.target)
		}

		return mapPermission(fmt.Errorf("apply binary: %w", err))
	}

	oldFileName := filepath.Join(filepath.Dir(s.target), "."+filepath.Base(s.target)+".old")
	if _, err := os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// installWithSudo runs "sudo install -m 0755 src target".
func (s *System) installWithSudo(ctx context.Context, binaryPath string) error {
	//nolint:gosec // Arguments are the configured target and a store path.
	cmd := exec.CommandContext(ctx, s.sudo, "install", "-m", "0755", binaryPath, s.target)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: sudo install: %w: %s", release.ErrPermission, err, bytes.TrimSpace(output))
	}

	return nil
}

// writable reports whether the current user may create files in dir.
func writable(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}

// mapPermission tags permission failures with release.ErrPermission.
func mapPermission(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %w", release.ErrPermission, err)
	}

	return err
}
