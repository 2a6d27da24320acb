package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/service/status"
	"github.com/oshokin/artifact-keeper/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// wait keeps polling until the server reports every artifact valid.
	wait bool

	// rootCmd represents the base command for querying the artifact server.
	rootCmd = &cobra.Command{
		Use:   "artifact-status [server-address]",
		Short: "Show artifact health reported by the artifact server",
		Long: `Queries the artifact server for the health of the storage root, every category
and every configured artifact and prints them as a table.

Exits with non-zero status when the storage root is not serving.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			options := &status.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Wait:          wait,
				Out:           cmd.OutOrStdout(),
			}

			return status.Run(ctx, options)
		},
	}
)

// Execute runs the artifact-status CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until every artifact is valid")
}
