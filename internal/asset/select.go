package asset

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/oshokin/opencode-updater/internal/archive"
	"github.com/oshokin/opencode-updater/internal/checksum"
	"github.com/oshokin/opencode-updater/internal/domain/release"
)

// Mode is the asset selection strategy.
type Mode int

const (
	// ModeDefault picks the first canonical asset name present in the release.
	ModeDefault Mode = iota
	// ModeInteractive lets a Selector choose among filtered candidates.
	ModeInteractive
	// ModeOverride uses the name and URL supplied by the caller.
	ModeOverride
)

// String returns a log friendly name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeInteractive:
		return "interactive"
	case ModeOverride:
		return "override"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Selector picks one of the offered options and returns its index.
type Selector interface {
	Choose(ctx context.Context, options []string) (int, error)
}

// Override is a caller supplied asset, used by scripted installs and tests.
type Override struct {
	// Name is the asset file name; its extension selects the archive format.
	Name string
	// URL is the download location.
	URL string
}

// Request configures a selection.
type Request struct {
	// Mode picks the strategy.
	Mode Mode
	// DefaultNames are the canonical names tried in order by ModeDefault.
	DefaultNames []string
	// Selector is consulted by ModeInteractive.
	Selector Selector
	// Override is used by ModeOverride.
	Override *Override
	// Platform is the OS keyword used by the interactive filter,
	// runtime.GOOS when empty.
	Platform string
}

// Selection is the chosen asset.
type Selection struct {
	// Name is the asset file name.
	Name string
	// URL is the download location.
	URL string
}

// Select resolves the asset to download from the release assets.
func Select(ctx context.Context, assets []release.Asset, req *Request) (*Selection, error) {
	switch req.Mode {
	case ModeOverride:
		if req.Override == nil || req.Override.Name == "" || req.Override.URL == "" {
			return nil, fmt.Errorf("%w: override requires a name and a url", release.ErrAssetNotFound)
		}

		return &Selection{Name: req.Override.Name, URL: req.Override.URL}, nil
	case ModeInteractive:
		return selectInteractive(ctx, assets, req)
	case ModeDefault:
		return selectDefault(assets, req.DefaultNames)
	default:
		return nil, fmt.Errorf("%w: unknown selection mode %s", release.ErrAssetNotFound, req.Mode)
	}
}

// LocateChecksumAsset returns the URL of the "<assetName>.sha256" companion.
// The second value is false when the release has no companion.
func LocateChecksumAsset(assets []release.Asset, assetName string) (string, bool) {
	found, ok := find(assets, assetName+checksum.Suffix)
	if !ok {
		return "", false
	}

	return found.DownloadURL, true
}

// Candidates returns the assets offered in interactive mode: archives or
// files mentioning the platform, never checksum companions.
func Candidates(assets []release.Asset, platform string) []release.Asset {
	if platform == "" {
		platform = runtime.GOOS
	}

	platform = strings.ToLower(platform)
	result := make([]release.Asset, 0, len(assets))

	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if strings.HasSuffix(name, checksum.Suffix) {
			continue
		}

		if archive.IsSupported(name) || strings.Contains(name, platform) {
			result = append(result, a)
		}
	}

	return result
}

func selectDefault(assets []release.Asset, names []string) (*Selection, error) {
	for _, name := range names {
		if found, ok := find(assets, name); ok {
			return &Selection{Name: found.Name, URL: found.DownloadURL}, nil
		}
	}

	return nil, fmt.Errorf("%w: none of %s in release", release.ErrAssetNotFound, strings.Join(names, ", "))
}

func selectInteractive(ctx context.Context, assets []release.Asset, req *Request) (*Selection, error) {
	candidates := Candidates(assets, req.Platform)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no binary assets in release", release.ErrAssetNotFound)
	}

	selector := req.Selector
	if selector == nil {
		selector = FixedSelector{}
	}

	options := make([]string, len(candidates))
	for i, c := range candidates {
		options[i] = c.Name
	}

	index, err := selector.Choose(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("choose asset: %w", err)
	}

	if index < 0 || index >= len(candidates) {
		return nil, fmt.Errorf("%w: selection %d out of range", release.ErrAssetNotFound, index)
	}

	chosen := candidates[index]

	return &Selection{Name: chosen.Name, URL: chosen.DownloadURL}, nil
}

func find(assets []release.Asset, name string) (release.Asset, bool) {
	for _, a := range assets {
		if a.Name == name {
			return a, true
		}
	}

	return release.Asset{}, false
}
