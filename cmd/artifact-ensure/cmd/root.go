package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/service/provisioner"
	"github.com/oshokin/artifact-keeper/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for provisioning background artifacts.
	rootCmd = &cobra.Command{
		Use:   "artifact-ensure [category...]",
		Short: "Ensure every configured artifact is present and valid",
		Long: `Checks every configured artifact against its expected digest and downloads
the ones that are missing or damaged.

Categories are processed concurrently; artifacts inside one category run in order.
Pass category names (keys, gpu_driver, firmware, update_package) to limit the run.
Exits with non-zero status if any artifact could not be made valid.`,
		ValidArgs: []string{"keys", "gpu_driver", "firmware", "update_package"},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			categories := make([]artifact.Category, 0, len(args))

			for _, arg := range args {
				category, err := artifact.ParseCategory(arg)
				if err != nil {
					return err
				}

				categories = append(categories, category)
			}

			options := &provisioner.Options{
				ConfigPath: configPath,
				Categories: categories,
				Out:        cmd.OutOrStdout(),
			}

			return provisioner.Run(ctx, options)
		},
	}
)

// Execute runs the artifact-ensure CLI and exits with non-zero status on error.
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
