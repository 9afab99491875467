package updater

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/opencode-updater/internal/archive"
	"github.com/oshokin/opencode-updater/internal/asset"
	"github.com/oshokin/opencode-updater/internal/checksum"
	"github.com/oshokin/opencode-updater/internal/config"
	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/logger"
)

// Action is the command selected on the command line.
type Action int

const (
	// ActionUpdate installs the latest release.
	ActionUpdate Action = iota
	// ActionRollback reinstalls a stored version.
	ActionRollback
	// ActionListVersions prints installed and available versions.
	ActionListVersions
	// ActionChangelog prints the notes of one release.
	ActionChangelog
	// ActionCompare prints the notes between two releases.
	ActionCompare
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// Action is the command to run.
	Action Action
	// Interactive asks the user to pick the asset.
	Interactive bool
	// Version is the rollback target or the changelog version; an empty
	// changelog version means the latest release.
	Version string
	// CompareFrom and CompareTo bound a comparison.
	CompareFrom, CompareTo string
	// KeepVersions overrides the configured retention when non-negative.
	KeepVersions int
	// Force reinstalls the latest release even when it is current.
	Force bool
	// MarkdownStyle is the glamour style for release notes.
	MarkdownStyle string
	// Updater options appended after the ones derived from settings.
	Extra []Option
}

// Run loads settings and executes the selected action. It is the public
// entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "opencode-updater")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	levelName := settings.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}

	if level, ok := logger.ParseLogLevel(levelName); ok {
		logger.SetLevel(level)
	} else {
		logger.Warnf(ctx, "Unknown log level %q, keeping %s", levelName, logger.Level())
	}

	updaterOptions := append([]Option{WithMarkdownStyle(opts.MarkdownStyle)}, opts.Extra...)

	u, err := New(settings, updaterOptions...)
	if err != nil {
		return err
	}

	switch opts.Action {
	case ActionRollback:
		return u.Rollback(ctx, opts.Version)
	case ActionListVersions:
		return u.ListVersions(ctx)
	case ActionChangelog:
		return u.Changelog(ctx, opts.Version)
	case ActionCompare:
		return u.Compare(ctx, opts.CompareFrom, opts.CompareTo)
	}

	keep := settings.KeepVersions
	if opts.KeepVersions >= 0 {
		keep = opts.KeepVersions
	}

	mode := asset.ModeDefault
	if opts.Interactive {
		mode = asset.ModeInteractive
	}

	result, err := u.Update(ctx, &Request{
		Mode:         mode,
		KeepVersions: keep,
		Force:        opts.Force,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)
		return err
	}

	if result.UpToDate {
		_, _ = fmt.Fprintf(u.out, "opencode %s is already the latest version.\n", result.Version)
		return nil
	}

	_, _ = fmt.Fprintf(u.out, "Updated opencode to version %s.\n", result.Version)

	return nil
}

// Update runs the update state machine. Any failure before the pointer
// switch leaves the previous current version intact.
func (u *Updater) Update(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		req = new(Request)
	}

	unlock, err := u.store.Lock()
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = unlock()
	}()

	if !req.SkipInstall {
		u.backupExisting(ctx)
	}

	logger.Info(ctx, "Fetching the latest release")

	latest, err := u.source.FetchLatest(ctx)
	if err != nil {
		return nil, err
	}

	latestVersion := latest.Version()
	if _, err = release.ParseVersion(latestVersion); err != nil {
		return nil, err
	}

	if !req.SkipInstall && !req.Force && u.isCurrent(ctx, latestVersion) {
		logger.InfoKV(ctx, "Already on the latest version", "version", latestVersion)

		return &Result{Version: latestVersion, UpToDate: true}, nil
	}

	selection, err := asset.Select(ctx, latest.Assets, &asset.Request{
		Mode:         req.Mode,
		DefaultNames: u.cfg.DefaultAssets,
		Selector:     u.selector,
		Override:     req.Override,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Selected asset", "asset", selection.Name, "mode", req.Mode)

	expected := u.expectedChecksum(ctx, latest.Assets, selection.Name)

	logger.InfoKV(ctx, "Downloading", "url", selection.URL)

	payload, err := u.source.Download(ctx, selection.URL)
	if err != nil {
		return nil, err
	}

	verified, err := verifyPayload(ctx, payload, expected)
	if err != nil {
		return nil, err
	}

	workDir, cleanup, err := u.workDir(req.WorkDir)
	if err != nil {
		return nil, err
	}

	defer cleanup()

	binaryPath, err := archive.Extract(payload, selection.Name, workDir)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Version:    latestVersion,
		AssetName:  selection.Name,
		BinaryPath: binaryPath,
		Checksum:   verified,
	}

	if req.SkipInstall {
		return result, nil
	}

	record := release.NewVersionRecord(latest, selection.URL, verified, u.cfg.InstallPath, u.now())
	if err = u.store.Save(ctx, record, binaryPath); err != nil {
		return nil, err
	}

	u.warnRunning(ctx)

	logger.InfoKV(ctx, "Installing", "version", latestVersion, "target", u.cfg.InstallPath)

	if err = u.installer.Install(ctx, u.store.BinaryPath(latestVersion)); err != nil {
		return nil, fmt.Errorf("install %s: %w", latestVersion, err)
	}

	if err = u.store.SetCurrent(latestVersion); err != nil {
		return nil, err
	}

	removed, err := u.store.Cleanup(ctx, req.KeepVersions)
	if err != nil {
		logger.WarnKV(ctx, "Cleanup of old versions failed", "error", err)
	}

	result.Removed = removed

	return result, nil
}

// Rollback reinstalls a stored version and makes it current.
func (u *Updater) Rollback(ctx context.Context, version string) error {
	unlock, err := u.store.Lock()
	if err != nil {
		return err
	}

	defer func() {
		_ = unlock()
	}()

	u.warnRunning(ctx)

	if err = u.store.Rollback(ctx, version, u.installer); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(u.out, "Rolled back opencode to version %s.\n", release.NormalizeVersion(version))

	return nil
}

// backupExisting stores the live binary when its version is not stored yet.
// Every failure here is logged and ignored.
func (u *Updater) backupExisting(ctx context.Context) {
	if _, err := os.Stat(u.cfg.InstallPath); err != nil {
		return
	}

	version, err := u.probe(ctx, u.cfg.InstallPath)
	if err != nil {
		logger.DebugKV(ctx, "Skipping backup, version unknown", "error", err)
		return
	}

	if _, err = release.ParseVersion(version); err != nil {
		logger.DebugKV(ctx, "Skipping backup, version invalid", "version", version)
		return
	}

	if u.store.Has(version) {
		return
	}

	record := release.NewDetectedRecord(version, u.cfg.InstallPath, BackupNotes, u.now())
	if err = u.store.Save(ctx, record, u.cfg.InstallPath); err != nil {
		logger.WarnKV(ctx, "Backup of the installed version failed", "version", version, "error", err)
		return
	}

	logger.InfoKV(ctx, "Backed up current version", "version", record.Version)
}

// isCurrent reports whether version is already the current one.
func (u *Updater) isCurrent(ctx context.Context, version string) bool {
	current, err := u.store.Current(ctx)
	if err != nil {
		return false
	}

	cmp, err := release.CompareVersions(current.Version, version)

	return err == nil && cmp == 0
}

// expectedChecksum downloads the companion of assetName. Missing, unreadable
// or empty companions yield an empty digest.
func (u *Updater) expectedChecksum(ctx context.Context, assets []release.Asset, assetName string) string {
	companionURL, ok := asset.LocateChecksumAsset(assets, assetName)
	if !ok {
		logger.WarnKV(ctx, "No checksum published, skipping verification", "asset", assetName)
		return ""
	}

	body, err := u.source.Download(ctx, companionURL)
	if err != nil {
		logger.WarnKV(ctx, "Unable to fetch checksum, skipping verification", "asset", assetName, "error", err)
		return ""
	}

	expected := checksum.ParseCompanion(string(body))
	if expected == "" {
		logger.WarnKV(ctx, "Checksum file is empty, skipping verification", "asset", assetName)
	}

	return expected
}

// verifyPayload checks payload against expected and returns the digest to
// record, empty when there was nothing to verify against.
func verifyPayload(ctx context.Context, payload []byte, expected string) (string, error) {
	if expected == "" {
		return "", nil
	}

	if !checksum.Verify(payload, expected) {
		return "", &release.ChecksumMismatchError{
			Expected: expected,
			Actual:   checksum.Digest(payload),
		}
	}

	logger.Debug(ctx, "Checksum verified")

	return checksum.Digest(payload), nil
}

// workDir returns the extraction directory and its cleanup function.
func (u *Updater) workDir(requested string) (string, func(), error) {
	if requested != "" {
		if err := os.MkdirAll(requested, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work directory: %w", err)
		}

		return requested, func() {}, nil
	}

	dir, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temporary directory: %w", err)
	}

	return dir, func() {
		_ = os.RemoveAll(dir)
	}, nil
}

// warnRunning reports running instances of the managed binary.
func (u *Updater) warnRunning(ctx context.Context) {
	pids, err := u.processes(u.cfg.BinaryName)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "The binary is running and will keep the old version until restarted",
			"binary", u.cfg.BinaryName, "pids", pids)
	}
}

