package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/opencode-updater/internal/domain/release"
)

const (
	// DefaultTTL is how long a snapshot stays valid.
	DefaultTTL = time.Hour

	// Filename is the snapshot name inside the cache directory.
	Filename = "releases.json"

	filePermissions = 0o644
	dirPermissions  = 0o755
)

// ErrCacheMiss is returned when no valid snapshot exists.
var ErrCacheMiss = errors.New("release cache miss")

// Repository defines persistence operations for the release list snapshot.
type Repository interface {
	Load(ctx context.Context) (*release.CachedReleaseList, error)
	Save(ctx context.Context, releases []release.Release) error
}

// FileCache persists the release list to a JSON file on disk.
type FileCache struct {
	// path is the filesystem location of the snapshot.
	path string
	// ttl bounds the snapshot age.
	ttl time.Duration
	// now is the clock, replaceable in tests.
	now func() time.Time
	// mu serializes file access within the process.
	mu sync.Mutex
}

// Option configures a FileCache.
type Option func(*FileCache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *FileCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *FileCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewFileCache creates a cache stored in dir/releases.json.
func NewFileCache(dir string, opts ...Option) *FileCache {
	c := &FileCache{
		path: filepath.Join(filepath.Clean(dir), Filename),
		ttl:  DefaultTTL,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Path returns the snapshot location.
func (c *FileCache) Path() string {
	return c.path
}

// Load returns the snapshot if it is younger than the TTL.
func (c *FileCache) Load(_ context.Context) (*release.CachedReleaseList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	contents, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}

		return nil, fmt.Errorf("read release cache: %w", err)
	}

	var snapshot release.CachedReleaseList
	if err = json.Unmarshal(contents, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrCacheMiss, err)
	}

	if !snapshot.IsFresh(c.now(), c.ttl) {
		return nil, ErrCacheMiss
	}

	return &snapshot, nil
}

// Save replaces the snapshot with releases stamped with the current time.
// The file is written to a temporary name and renamed into place.
func (c *FileCache) Save(_ context.Context, releases []release.Release) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := release.CachedReleaseList{
		Releases:  releases,
		FetchedAt: c.now().UTC(),
	}

	data, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("encode release cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err = os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, Filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary cache file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write release cache: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close release cache: %w", err)
	}

	if err = os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("chmod release cache: %w", err)
	}

	if err = os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("replace release cache: %w", err)
	}

	return nil
}
