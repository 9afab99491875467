package versions

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/logger"
)

const (
	// VersionsDir holds one subdirectory per stored build.
	VersionsDir = "versions"
	// CurrentLink is the symlink naming the active build.
	CurrentLink = "current"
	// MetadataFilename is the record stored next to each binary.
	MetadataFilename = "metadata.json"
	// LockFilename guards the store against concurrent updaters.
	LockFilename = ".lock"

	// DetectedNotes is used for records synthesized from the live binary.
	DetectedNotes = "Detected from system installation"

	binaryMode      os.FileMode = 0o755
	metadataMode    os.FileMode = 0o644
	directoryMode   os.FileMode = 0o755
	temporaryPrefix             = ".tmp-"
)

// ErrStoreLocked is returned when another process holds the store lock.
var ErrStoreLocked = errors.New("version store is locked by another process")

// Installer places a stored binary at the system location.
type Installer interface {
	Install(ctx context.Context, binaryPath string) error
}

// ProbeFunc reports the version of the binary at path.
type ProbeFunc func(ctx context.Context, path string) (string, error)

// Store manages installed versions under a root directory.
type Store struct {
	// root is the storage directory.
	root string
	// binaryName is the file name of the stored executable.
	binaryName string
	// livePath is the system binary probed when no pointer is set.
	livePath string
	// probe asks the live binary for its version.
	probe ProbeFunc
	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithProbe enables detecting the live binary at livePath when the current
// pointer is unset.
func WithProbe(livePath string, probe ProbeFunc) Option {
	return func(s *Store) {
		s.livePath = livePath
		s.probe = probe
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

var (
	// errRootRequired is returned when no storage directory is given.
	errRootRequired = errors.New("storage directory must be provided")
	// errBinaryNameRequired is returned when no binary name is given.
	errBinaryNameRequired = errors.New("binary name must be provided")
)

// New creates a store rooted at root. Directories are created lazily.
func New(root, binaryName string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errRootRequired
	}

	if binaryName == "" || strings.ContainsRune(binaryName, filepath.Separator) {
		return nil, errBinaryNameRequired
	}

	s := &Store{
		root:       filepath.Clean(root),
		binaryName: binaryName,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Root returns the storage directory.
func (s *Store) Root() string {
	return s.root
}

// BinaryPath returns where the binary of version is stored.
func (s *Store) BinaryPath(version string) string {
	return filepath.Join(s.versionDir(version), s.binaryName)
}

// Has reports whether version is stored completely.
func (s *Store) Has(version string) bool {
	return s.complete(release.NormalizeVersion(version))
}

// Get returns the record of a stored version.
func (s *Store) Get(version string) (*release.VersionRecord, error) {
	version = release.NormalizeVersion(version)
	if !s.complete(version) {
		return nil, fmt.Errorf("%w: %s", release.ErrVersionNotFound, version)
	}

	return s.readRecord(version)
}

// List returns every complete record, newest install first. Directories
// missing the binary or the metadata are skipped; undecodable metadata is
// skipped with a warning.
func (s *Store) List(ctx context.Context) ([]*release.VersionRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, VersionsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: list versions: %w", release.ErrStorage, err)
	}

	records := make([]*release.VersionRecord, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		version := entry.Name()
		if !s.complete(version) {
			continue
		}

		record, readErr := s.readRecord(version)
		if readErr != nil {
			logger.WarnKV(ctx, "Skipping unreadable version metadata", "version", version, "error", readErr)
			continue
		}

		records = append(records, record)
	}

	sortRecords(records)

	return records, nil
}

// Current returns the record the pointer names. Without a valid pointer the
// live binary is probed and a record with approximate timestamps is
// synthesized. release.ErrVersionNotFound means there is no current version.
func (s *Store) Current(ctx context.Context) (*release.VersionRecord, error) {
	if version, ok := s.pointer(); ok {
		record, err := s.readRecord(version)
		if err == nil {
			return record, nil
		}

		logger.WarnKV(ctx, "Current version metadata is unreadable", "version", version, "error", err)
	}

	return s.detect(ctx)
}

// Save stores the binary and its record. The previous metadata is removed
// first, then the binary is written, then the new metadata, each through a
// temporary file and a rename. Saving an existing version overwrites it.
func (s *Store) Save(ctx context.Context, record *release.VersionRecord, binarySource string) error {
	if record == nil {
		return fmt.Errorf("%w: record is not set", release.ErrStorage)
	}

	parsed, err := release.ParseVersion(record.Version)
	if err != nil {
		return err
	}

	stored := *record
	stored.Version = parsed.Original()

	dir := s.versionDir(stored.Version)
	if err = os.MkdirAll(dir, directoryMode); err != nil {
		return fmt.Errorf("%w: create version directory: %w", release.ErrStorage, err)
	}

	metadataPath := filepath.Join(dir, MetadataFilename)
	if err = os.Remove(metadataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove old metadata: %w", release.ErrStorage, err)
	}

	if err = copyBinary(binarySource, filepath.Join(dir, s.binaryName)); err != nil {
		return fmt.Errorf("%w: store binary: %w", release.ErrStorage, err)
	}

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %w", release.ErrStorage, err)
	}

	if err = writeAtomic(metadataPath, data, metadataMode); err != nil {
		return fmt.Errorf("%w: write metadata: %w", release.ErrStorage, err)
	}

	logger.DebugKV(ctx, "Stored version", "version", stored.Version, "path", dir)

	return nil
}

// SetCurrent points the current link at a stored version.
func (s *Store) SetCurrent(version string) error {
	version = release.NormalizeVersion(version)
	if !s.complete(version) {
		return fmt.Errorf("%w: %s", release.ErrVersionNotFound, version)
	}

	if err := os.MkdirAll(s.root, directoryMode); err != nil {
		return fmt.Errorf("%w: create storage directory: %w", release.ErrStorage, err)
	}

	tmp := filepath.Join(s.root, fmt.Sprintf("%s%s-%d", temporaryPrefix, CurrentLink, s.now().UnixNano()))
	if err := os.Symlink(filepath.Join(VersionsDir, version), tmp); err != nil {
		return fmt.Errorf("%w: create pointer: %w", release.ErrStorage, err)
	}

	if err := os.Rename(tmp, filepath.Join(s.root, CurrentLink)); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("%w: replace pointer: %w", release.ErrStorage, err)
	}

	return nil
}

// Remove deletes a stored version.
func (s *Store) Remove(version string) error {
	version = release.NormalizeVersion(version)
	if version == "" || version == "." || version == ".." {
		return fmt.Errorf("%w: %q", release.ErrVersionNotFound, version)
	}

	if err := os.RemoveAll(s.versionDir(version)); err != nil {
		return fmt.Errorf("%w: remove %s: %w", release.ErrStorage, version, err)
	}

	return nil
}

// Cleanup keeps the current version and the keepCount most recently
// installed others, removing the rest. It returns the removed versions.
func (s *Store) Cleanup(ctx context.Context, keepCount int) ([]string, error) {
	keepCount = max(keepCount, 0)

	var currentVersion string

	current, err := s.Current(ctx)
	switch {
	case err == nil:
		currentVersion = current.Version
	case !errors.Is(err, release.ErrVersionNotFound):
		return nil, err
	}

	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	candidates := slices.DeleteFunc(records, func(r *release.VersionRecord) bool {
		return r.Version == currentVersion
	})

	if len(candidates) <= keepCount {
		return nil, nil
	}

	var (
		removed []string
		errs    []error
	)

	for _, record := range candidates[keepCount:] {
		if removeErr := s.Remove(record.Version); removeErr != nil {
			errs = append(errs, removeErr)
			continue
		}

		logger.InfoKV(ctx, "Removed old version", "version", record.Version)

		removed = append(removed, record.Version)
	}

	return removed, errors.Join(errs...)
}

// Rollback installs a stored version and points current at it. A pointer
// failure after a successful install is reported as release.ErrRollbackFailed
// since the system binary and the store no longer agree.
func (s *Store) Rollback(ctx context.Context, version string, installer Installer) error {
	version = release.NormalizeVersion(version)
	if !s.complete(version) {
		return fmt.Errorf("%w: %s", release.ErrVersionNotFound, version)
	}

	if err := installer.Install(ctx, s.BinaryPath(version)); err != nil {
		return fmt.Errorf("install %s: %w", version, err)
	}

	if err := s.SetCurrent(version); err != nil {
		return fmt.Errorf("%w: %s installed but current pointer not updated: %w",
			release.ErrRollbackFailed, version, err)
	}

	return nil
}

// Lock takes the exclusive store lock without waiting. The returned function
// releases it.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(s.root, directoryMode); err != nil {
		return nil, fmt.Errorf("%w: create storage directory: %w", release.ErrStorage, err)
	}

	fileLock := flock.New(filepath.Join(s.root, LockFilename))

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %w", release.ErrStorage, err)
	}

	if !locked {
		return nil, ErrStoreLocked
	}

	return fileLock.Unlock, nil
}

// detect synthesizes a record from the live binary.
func (s *Store) detect(ctx context.Context) (*release.VersionRecord, error) {
	if s.probe == nil || s.livePath == "" {
		return nil, release.ErrVersionNotFound
	}

	if _, err := os.Stat(s.livePath); err != nil {
		return nil, release.ErrVersionNotFound
	}

	version, err := s.probe(ctx, s.livePath)
	if err != nil {
		logger.DebugKV(ctx, "Unable to detect installed version", "path", s.livePath, "error", err)

		return nil, release.ErrVersionNotFound
	}

	if _, err = release.ParseVersion(version); err != nil {
		logger.DebugKV(ctx, "Installed binary reported an invalid version", "version", version)

		return nil, release.ErrVersionNotFound
	}

	return release.NewDetectedRecord(version, s.livePath, DetectedNotes, s.now()), nil
}

// pointer returns the version the current link names if that version is
// complete.
func (s *Store) pointer() (string, bool) {
	target, err := os.Readlink(filepath.Join(s.root, CurrentLink))
	if err != nil {
		return "", false
	}

	version := filepath.Base(target)
	if !s.complete(version) {
		return "", false
	}

	return version, true
}

// complete reports whether both the binary and the metadata are present.
func (s *Store) complete(version string) bool {
	if version == "" || version == "." || version == ".." || strings.ContainsRune(version, filepath.Separator) {
		return false
	}

	binary, err := os.Stat(s.BinaryPath(version))
	if err != nil || !binary.Mode().IsRegular() {
		return false
	}

	metadata, err := os.Stat(filepath.Join(s.versionDir(version), MetadataFilename))

	return err == nil && metadata.Mode().IsRegular()
}

func (s *Store) readRecord(version string) (*release.VersionRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.versionDir(version), MetadataFilename))
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %w", release.ErrStorage, err)
	}

	var record release.VersionRecord
	if err = json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %w", release.ErrStorage, err)
	}

	if record.Version != version {
		return nil, fmt.Errorf("%w: metadata names %q in directory %q", release.ErrStorage, record.Version, version)
	}

	return &record, nil
}

func (s *Store) versionDir(version string) string {
	return filepath.Join(s.root, VersionsDir, release.NormalizeVersion(version))
}

// sortRecords orders by install time, newest first, then by version.
func sortRecords(records []*release.VersionRecord) {
	slices.SortStableFunc(records, func(a, b *release.VersionRecord) int {
		if byTime := b.InstalledAt.Compare(a.InstalledAt); byTime != 0 {
			return byTime
		}

		if byVersion, err := release.CompareVersions(b.Version, a.Version); err == nil {
			return byVersion
		}

		return cmp.Compare(b.Version, a.Version)
	})
}

// copyBinary copies src to dst through a temporary file in dst's directory.
func copyBinary(src, dst string) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	return replaceFile(dst, binaryMode, func(w io.Writer) error {
		_, copyErr := io.Copy(w, source)

		return copyErr
	})
}

// writeAtomic writes data to path through a temporary file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	return replaceFile(path, perm, func(w io.Writer) error {
		_, writeErr := w.Write(data)

		return writeErr
	})
}

func replaceFile(path string, perm os.FileMode, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), temporaryPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()

		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
