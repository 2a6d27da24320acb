package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/service/firmware"
	"github.com/oshokin/artifact-keeper/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for fetching and unpacking the firmware bundle.
	rootCmd = &cobra.Command{
		Use:   "firmware-fetch",
		Short: "Download the firmware bundle and unpack it",
		Long: `Downloads the configured firmware archive into the firmware directory with
progress output and extracts it next to the archive.

Nothing is downloaded when the archive and its extracted contents already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &firmware.Options{
				ConfigPath: configPath,
				Out:        cmd.OutOrStdout(),
			}

			return firmware.Run(ctx, options)
		},
	}
)

// Execute runs the firmware-fetch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
