package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/service/server"
	"github.com/oshokin/artifact-keeper/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// ledgerFile path where artifact outcomes are persisted.
	ledgerFile string

	// rootCmd represents the base command for running the artifact status server.
	rootCmd = &cobra.Command{
		Use:   "artifact-server [listen-address]",
		Short: "Keep artifacts valid in the background and report their health over gRPC.",
		Long: `Periodically ensures every configured artifact and publishes the results through
the standard gRPC health service.

The root service reports SERVING once every artifact is valid. Each category is
published under its directory name and each artifact as artifact/<id>.
Only the port from server_addr config is used for listening (e.g., :8080).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				LedgerFile:    ledgerFile,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the artifact-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&ledgerFile, "ledger-file", "l", "", "path to persist artifact outcomes; defaults to ledger_file from config")
}
