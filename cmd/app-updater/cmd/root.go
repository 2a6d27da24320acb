package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/service/updater"
	"github.com/oshokin/artifact-keeper/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// assumeYes accepts the update without prompting.
	assumeYes bool
	// checkOnly stops after reporting whether an update exists.
	checkOnly bool
	// currentVersion overrides the build version.
	currentVersion string
	// maxAttempts bounds download attempts in one cycle.
	maxAttempts int

	// rootCmd represents the base command for checking, downloading and installing updates.
	rootCmd = &cobra.Command{
		Use:   "app-updater",
		Short: "Check for a newer application version and install it",
		Long: `Queries the metadata endpoint, compares the advertised version with the running one
and, after confirmation, downloads the package into the storage root and hands it to
the configured installer.

A package already present with a valid digest is installed without downloading again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPath:          configPath,
				AssumeYes:           assumeYes,
				CheckOnly:           checkOnly,
				CurrentVersion:      currentVersion,
				MaxDownloadAttempts: maxAttempts,
				In:                  cmd.InOrStdin(),
				Out:                 cmd.OutOrStdout(),
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the app-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "install without asking")
	flags.BoolVar(&checkOnly, "check", false, "only report whether an update is available")
	flags.StringVar(&currentVersion, "current-version", "", "version to compare against instead of the build version")
	flags.IntVar(&maxAttempts, "max-attempts", updater.DefaultMaxDownloadAttempts, "download attempts before giving up")
}
