package asset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opencode-updater/internal/domain/release"
	"github.com/oshokin/opencode-updater/internal/testutil"
)

var (
	defaultNames = []string{"opencode-linux-x64.zip", "opencode-linux-x64.tar.gz"}

	errTestAborted = errors.New("aborted")
)

func sampleAssets() []release.Asset {
	return []release.Asset{
		{Name: "opencode-darwin-arm64.zip", DownloadURL: "https://dl/darwin.zip"},
		{Name: "opencode-linux-x64.zip", DownloadURL: "https://dl/linux.zip"},
		{Name: "opencode-linux-x64.zip.sha256", DownloadURL: "https://dl/linux.zip.sha256"},
		{Name: "opencode-linux-arm64", DownloadURL: "https://dl/linux-arm64"},
		{Name: "source.txt", DownloadURL: "https://dl/source.txt"},
	}
}

// TestSelect_Default finds the canonical asset.
func TestSelect_Default(t *testing.T) {
	t.Parallel()

	got, err := Select(context.Background(), sampleAssets(), &Request{DefaultNames: defaultNames})
	require.NoError(t, err)
	require.Equal(t, &Selection{Name: "opencode-linux-x64.zip", URL: "https://dl/linux.zip"}, got)
}

// TestSelect_DefaultFallsBackToTarGz uses the alternate format when the zip is missing.
func TestSelect_DefaultFallsBackToTarGz(t *testing.T) {
	t.Parallel()

	assets := []release.Asset{
		{Name: "opencode-linux-x64.tar.gz", DownloadURL: "https://dl/linux.tar.gz"},
	}

	got, err := Select(context.Background(), assets, &Request{DefaultNames: defaultNames})
	require.NoError(t, err)
	require.Equal(t, "opencode-linux-x64.tar.gz", got.Name)
}

// TestSelect_DefaultMissing fails with ErrAssetNotFound.
func TestSelect_DefaultMissing(t *testing.T) {
	t.Parallel()

	_, err := Select(context.Background(), []release.Asset{{Name: "x.deb"}}, &Request{DefaultNames: defaultNames})
	require.ErrorIs(t, err, release.ErrAssetNotFound)
}

// TestSelect_Interactive filters candidates and honours the selector choice.
func TestSelect_Interactive(t *testing.T) {
	t.Parallel()

	selector := &testutil.FakeSelector{Index: 2}

	got, err := Select(context.Background(), sampleAssets(), &Request{
		Mode:     ModeInteractive,
		Selector: selector,
		Platform: "linux",
	})
	require.NoError(t, err)
	require.Equal(t, "opencode-linux-arm64", got.Name)
	require.Equal(t, []string{
		"opencode-darwin-arm64.zip",
		"opencode-linux-x64.zip",
		"opencode-linux-arm64",
	}, selector.Offered)
}

// TestSelect_InteractiveFailures covers empty candidates, bad indexes and aborts.
func TestSelect_InteractiveFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := Select(ctx, []release.Asset{{Name: "notes.txt"}}, &Request{Mode: ModeInteractive, Platform: "linux"})
	require.ErrorIs(t, err, release.ErrAssetNotFound)

	_, err = Select(ctx, sampleAssets(), &Request{
		Mode:     ModeInteractive,
		Selector: &testutil.FakeSelector{Index: 10},
		Platform: "linux",
	})
	require.ErrorIs(t, err, release.ErrAssetNotFound)

	_, err = Select(ctx, sampleAssets(), &Request{
		Mode:     ModeInteractive,
		Selector: &testutil.FakeSelector{Err: errTestAborted},
		Platform: "linux",
	})
	require.ErrorIs(t, err, errTestAborted)
}

// TestSelect_Override returns the caller supplied asset untouched.
func TestSelect_Override(t *testing.T) {
	t.Parallel()

	got, err := Select(context.Background(), nil, &Request{
		Mode:     ModeOverride,
		Override: &Override{Name: "custom.tar.gz", URL: "http://local/custom.tar.gz"},
	})
	require.NoError(t, err)
	require.Equal(t, "custom.tar.gz", got.Name)
	require.Equal(t, "http://local/custom.tar.gz", got.URL)

	_, err = Select(context.Background(), nil, &Request{Mode: ModeOverride})
	require.ErrorIs(t, err, release.ErrAssetNotFound)
}

// TestLocateChecksumAsset looks up the ".sha256" companion.
func TestLocateChecksumAsset(t *testing.T) {
	t.Parallel()

	url, ok := LocateChecksumAsset(sampleAssets(), "opencode-linux-x64.zip")
	require.True(t, ok)
	require.Equal(t, "https://dl/linux.zip.sha256", url)

	_, ok = LocateChecksumAsset(sampleAssets(), "opencode-darwin-arm64.zip")
	require.False(t, ok)
}

// TestFixedSelector returns its index regardless of options.
func TestFixedSelector(t *testing.T) {
	t.Parallel()

	index, err := FixedSelector{Index: 1}.Choose(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, 1, index)
}
