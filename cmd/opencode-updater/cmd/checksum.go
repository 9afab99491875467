package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/opencode-updater/internal/service/packager"
)

// checksumCmd writes checksum companions for release archives.
var checksumCmd = &cobra.Command{
	Use:   "checksum FILE...",
	Short: "Write <FILE>.sha256 checksum files for publishing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		written, err := packager.Run(ctx, &packager.Options{Files: args})
		for _, path := range written {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		}

		return err
	},
}
