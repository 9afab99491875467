package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oshokin/opencode-updater/internal/config"
	"github.com/oshokin/opencode-updater/internal/service/updater"
	"github.com/oshokin/opencode-updater/internal/version"
)

// latestMarker is the value of a bare --changelog flag.
const latestMarker = "latest"

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	interactive  bool
	rollback     string
	listVersions bool
	changelog    string
	compareFrom  string
	keepVersions int
	force        bool

	// errUnexpectedArgument is returned for a positional argument outside --changelog and --compare.
	errUnexpectedArgument = errors.New("positional argument is only accepted with --changelog or --compare")
	// errCompareNeedsTo is returned when --compare lacks its TO version.
	errCompareNeedsTo = errors.New("--compare needs FROM and TO versions")

	// rootCmd represents the base command for updating the managed binary.
	rootCmd = &cobra.Command{
		Use:   "opencode-updater [VERSION]",
		Short: "Install the latest opencode release and manage local versions",
		Long: "Downloads the latest opencode release from GitHub, verifies its checksum, installs it " +
			"system-wide and keeps previous versions for rollback.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := buildOptions(cmd, args)
			if err != nil {
				return err
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the opencode-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(checksumCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildOptions maps flags and arguments to updater options.
func buildOptions(cmd *cobra.Command, args []string) (*updater.Options, error) {
	options := &updater.Options{
		ConfigPath:    configPath,
		LogLevel:      logLevel,
		Action:        updater.ActionUpdate,
		Interactive:   interactive,
		KeepVersions:  -1,
		Force:         force,
		MarkdownStyle: markdownStyle(),
	}

	if cmd.Flags().Changed("keep-versions") {
		if keepVersions < 0 {
			return nil, fmt.Errorf("--keep-versions must not be negative, got %d", keepVersions)
		}

		options.KeepVersions = keepVersions
	}

	var positional string
	if len(args) > 0 {
		positional = args[0]
	}

	flags := cmd.Flags()

	switch {
	case flags.Changed("rollback"):
		options.Action = updater.ActionRollback
		options.Version = rollback
	case listVersions:
		options.Action = updater.ActionListVersions
	case flags.Changed("changelog"):
		options.Action = updater.ActionChangelog

		options.Version = changelog
		if options.Version == latestMarker {
			options.Version = positional
		}

		positional = ""
	case flags.Changed("compare"):
		if positional == "" {
			return nil, errCompareNeedsTo
		}

		options.Action = updater.ActionCompare
		options.CompareFrom = compareFrom
		options.CompareTo = positional
		positional = ""
	}

	if positional != "" {
		return nil, errUnexpectedArgument
	}

	return options, nil
}

// markdownStyle picks a colored style only for terminals.
func markdownStyle() string {
	if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // File descriptors fit in int.
		return "dark"
	}

	return "notty"
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	registerFlags(rootCmd)
}

// registerFlags sets up command flags with consistent naming and descriptions.
func registerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultPath()+")")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&interactive, "bin", false, "choose the release asset interactively")
	flags.StringVar(&rollback, "rollback", "", "reinstall a previously installed `VERSION`")
	flags.BoolVar(&listVersions, "list-versions", false, "list installed and available versions")
	flags.StringVar(&changelog, "changelog", "", "show release notes of `VERSION` (latest when omitted)")
	flags.Lookup("changelog").NoOptDefVal = latestMarker
	flags.StringVar(&compareFrom, "compare", "", "show release notes between `FROM` and the TO argument")
	flags.IntVar(&keepVersions, "keep-versions", config.DefaultKeepVersions, "number of previous versions to keep")
	flags.BoolVar(&force, "force", false, "reinstall even when already on the latest version")

	cmd.MarkFlagsMutuallyExclusive("bin", "rollback", "list-versions", "changelog", "compare")
}
