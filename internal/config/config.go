package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the updater.
type Config struct {
	// Repository is the "owner/name" GitHub repository publishing releases.
	Repository string `yaml:"repository"`
	// APIURL is the base URL of the GitHub REST API.
	APIURL string `yaml:"api_url"`
	// BinaryName is the file name of the managed executable.
	BinaryName string `yaml:"binary_name"`
	// InstallPath is the live system location of the managed executable.
	InstallPath string `yaml:"install_path"`
	// StorageDir holds installed versions, the current pointer and the cache.
	StorageDir string `yaml:"storage_dir"`
	// DefaultAssets are the canonical asset names tried in order.
	DefaultAssets []string `yaml:"default_assets"`
	// KeepVersions is how many non-current versions retention keeps.
	KeepVersions int `yaml:"keep_versions"`
	// Timeout bounds each HTTP request; zero keeps the transport default.
	Timeout time.Duration `yaml:"timeout"`
	// UseSudo allows elevating with sudo when the install path is not writable.
	UseSudo bool `yaml:"use_sudo"`
	// GitHubToken is an optional token sent to the API.
	GitHubToken string `yaml:"github_token,omitempty"`
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file name inside the user config directory.
	DefaultConfigFilename = "settings.yaml"

	// AppName names the storage and configuration directories.
	AppName = "opencode-updater"

	// DefaultRepository publishes the managed binary.
	DefaultRepository = "sst/opencode"

	// DefaultAPIURL is the public GitHub API.
	DefaultAPIURL = "https://api.github.com"

	// DefaultBinaryName is the managed executable.
	DefaultBinaryName = "opencode"

	// DefaultInstallPath is where the managed executable lives system-wide.
	DefaultInstallPath = "/usr/bin/opencode"

	// DefaultKeepVersions is the retention count used when none is configured.
	DefaultKeepVersions = 2

	// DefaultLogLevel is used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the permission of the saved settings file.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidRepository is returned for repositories not in "owner/name" form.
	errInvalidRepository = errors.New("repository must look like owner/name")
	// errNegativeKeepVersions is returned for a negative retention count.
	errNegativeKeepVersions = errors.New("keep_versions must not be negative")
	// errNoHomeDirectory is returned when no storage location can be derived.
	errNoHomeDirectory = errors.New("unable to determine a data directory")
)

// DefaultAssets returns the canonical asset names, zip first.
func DefaultAssets() []string {
	return []string{"opencode-linux-x64.zip", "opencode-linux-x64.tar.gz"}
}

// DefaultPath returns the settings location inside the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFilename
	}

	return filepath.Join(dir, AppName, DefaultConfigFilename)
}

// DefaultStorageDir returns $XDG_DATA_HOME/opencode-updater, falling back to
// ~/.local/share/opencode-updater.
func DefaultStorageDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, AppName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", errNoHomeDirectory
	}

	return filepath.Join(home, ".local", "share", AppName), nil
}

// Default returns a validated configuration with every default applied.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads configuration from path and validates it. A missing file at the
// default location yields the defaults; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default()
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultPath()
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// The file may hold a token.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills in defaults for empty fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.Repository == "" {
		settings.Repository = DefaultRepository
	}

	if owner, name, ok := strings.Cut(settings.Repository, "/"); !ok || owner == "" || name == "" ||
		strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", errInvalidRepository, settings.Repository)
	}

	if settings.APIURL == "" {
		settings.APIURL = DefaultAPIURL
	}

	if _, err := url.ParseRequestURI(settings.APIURL); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	if settings.BinaryName == "" {
		settings.BinaryName = DefaultBinaryName
	}

	if settings.InstallPath == "" {
		settings.InstallPath = DefaultInstallPath
	}

	if settings.StorageDir == "" {
		dir, err := DefaultStorageDir()
		if err != nil {
			return err
		}

		settings.StorageDir = dir
	}

	if len(settings.DefaultAssets) == 0 {
		settings.DefaultAssets = DefaultAssets()
	}

	if settings.KeepVersions < 0 {
		return errNegativeKeepVersions
	}

	if settings.KeepVersions == 0 {
		settings.KeepVersions = DefaultKeepVersions
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	return nil
}
