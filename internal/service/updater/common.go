package updater

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/opencode-updater/internal/asset"
	"github.com/oshokin/opencode-updater/internal/config"
	"github.com/oshokin/opencode-updater/internal/installer"
	"github.com/oshokin/opencode-updater/internal/registry"
	"github.com/oshokin/opencode-updater/internal/repository/cache"
	"github.com/oshokin/opencode-updater/internal/repository/versions"
)

const (
	// BackupNotes are stored with a backup of the live binary.
	BackupNotes = "Current installation"

	// CacheDir is the cache subdirectory of the storage root.
	CacheDir = "cache"

	// tempDirPattern names temporary extraction directories.
	tempDirPattern = "opencode-updater-"

	// selectPrompt is the title of the interactive asset picker.
	selectPrompt = "Select a binary to install"
)

var (
	// errSettingsNotInitialised is returned when New receives no configuration.
	errSettingsNotInitialised = errors.New("settings are not initialized")
	// errCompareArguments is returned when a comparison misses one side.
	errCompareArguments = errors.New("compare needs both a FROM and a TO version")
)

// Updater wires the release source, the version store and the installer.
type Updater struct {
	cfg *config.Config

	source    registry.Source
	cache     cache.Repository
	store     *versions.Store
	installer versions.Installer
	selector  asset.Selector
	probe     versions.ProbeFunc
	processes func(name string) ([]int, error)
	now       func() time.Time

	// out receives command output.
	out io.Writer
	// markdownStyle is the glamour style of rendered release notes.
	markdownStyle string
}

// Option configures an Updater.
type Option func(*Updater)

// WithSource replaces the GitHub client.
func WithSource(source registry.Source) Option {
	return func(u *Updater) {
		u.source = source
	}
}

// WithCache replaces the release list cache.
func WithCache(repository cache.Repository) Option {
	return func(u *Updater) {
		u.cache = repository
	}
}

// WithStore replaces the version store.
func WithStore(store *versions.Store) Option {
	return func(u *Updater) {
		u.store = store
	}
}

// WithInstaller replaces the system installer.
func WithInstaller(inst versions.Installer) Option {
	return func(u *Updater) {
		u.installer = inst
	}
}

// WithSelector replaces the interactive asset picker.
func WithSelector(selector asset.Selector) Option {
	return func(u *Updater) {
		u.selector = selector
	}
}

// WithProber replaces the live binary version probe.
func WithProber(probe versions.ProbeFunc) Option {
	return func(u *Updater) {
		u.probe = probe
	}
}

// WithProcessLister replaces the running process lookup.
func WithProcessLister(list func(name string) ([]int, error)) Option {
	return func(u *Updater) {
		u.processes = list
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		u.now = now
	}
}

// WithOutput redirects command output, os.Stdout by default.
func WithOutput(out io.Writer) Option {
	return func(u *Updater) {
		u.out = out
	}
}

// WithMarkdownStyle sets the glamour style, "notty" by default.
func WithMarkdownStyle(style string) Option {
	return func(u *Updater) {
		u.markdownStyle = style
	}
}

// New builds an Updater from settings. Collaborators not supplied through
// options are created from the settings.
func New(cfg *config.Config, opts ...Option) (*Updater, error) {
	if cfg == nil {
		return nil, errSettingsNotInitialised
	}

	u := &Updater{cfg: cfg}

	for _, opt := range opts {
		opt(u)
	}

	if err := u.fillDefaults(); err != nil {
		return nil, err
	}

	return u, nil
}

func (u *Updater) fillDefaults() error {
	if u.now == nil {
		u.now = time.Now
	}

	if u.out == nil {
		u.out = os.Stdout
	}

	if u.markdownStyle == "" {
		u.markdownStyle = "notty"
	}

	if u.probe == nil {
		u.probe = installer.ProbeVersion
	}

	if u.processes == nil {
		u.processes = installer.RunningInstances
	}

	if u.selector == nil {
		u.selector = asset.PromptSelector{Title: selectPrompt}
	}

	if u.cache == nil {
		u.cache = cache.NewFileCache(filepath.Join(u.cfg.StorageDir, CacheDir), cache.WithClock(u.now))
	}

	if u.source == nil {
		client, err := registry.New(u.cfg.Repository,
			registry.WithBaseURL(u.cfg.APIURL),
			registry.WithToken(u.cfg.GitHubToken),
			registry.WithTimeout(u.cfg.Timeout),
		)
		if err != nil {
			return err
		}

		u.source = client
	}

	if u.installer == nil {
		system, err := installer.NewSystem(u.cfg.InstallPath, installer.WithSudo(u.cfg.UseSudo))
		if err != nil {
			return err
		}

		u.installer = system
	}

	if u.store == nil {
		store, err := versions.New(u.cfg.StorageDir, u.cfg.BinaryName,
			versions.WithProbe(u.cfg.InstallPath, u.probe),
			versions.WithClock(u.now),
		)
		if err != nil {
			return err
		}

		u.store = store
	}

	return nil
}

// Request describes one update run.
type Request struct {
	// SkipInstall stops after extraction: nothing is stored or installed and
	// no backup is taken.
	SkipInstall bool
	// Mode picks the asset selection strategy.
	Mode asset.Mode
	// Override is the asset used with asset.ModeOverride.
	Override *asset.Override
	// KeepVersions is how many non-current versions survive cleanup.
	KeepVersions int
	// Force reinstalls even when the latest release is already current.
	Force bool
	// WorkDir receives the extracted archive and is left in place. An empty
	// value uses a temporary directory removed at the end of the run.
	WorkDir string
}

// Result summarizes an update run.
type Result struct {
	// Version is the release version that was processed.
	Version string
	// AssetName is the selected asset.
	AssetName string
	// BinaryPath is the extracted executable; it only stays valid when
	// Request.WorkDir was set.
	BinaryPath string
	// Checksum is the verified digest, empty when no companion was published.
	Checksum string
	// UpToDate is set when the run stopped because nothing was newer.
	UpToDate bool
	// Removed lists versions deleted by cleanup.
	Removed []string
}
