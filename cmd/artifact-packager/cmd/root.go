package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-keeper/internal/service/packager"
	"github.com/oshokin/artifact-keeper/internal/version"
)

var (
	// options collects flag values for the packager.
	options = new(packager.Options)

	// rootCmd represents the base command for preparing release files.
	rootCmd = &cobra.Command{
		Use:   "artifact-packager [category=path...]",
		Short: "Compute digests and write update metadata and artifact manifests",
		Long: `Prepares files for upload to the download server.

With --package and --version it writes latest.json, the metadata document the updater
reads. Positional arguments in category=path form are hashed into artifacts.yaml,
and merged into the settings file when --config is given.`,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Artifacts = args

			_, err := packager.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the artifact-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.PackagePath, "package", "p", "", "update package to publish")
	flags.StringVarP(&options.VersionName, "version", "v", "", "version of the update package")
	flags.StringVarP(&options.Title, "title", "t", "", "release title; defaults to \"Version <version>\"")
	flags.StringVarP(&options.NotesPath, "notes", "n", "", "file with release notes")
	flags.StringVarP(&options.BaseURL, "base-url", "u", "", "URL the files will be uploaded under")
	flags.StringVarP(&options.Algorithm, "algorithm", "a", "", "digest algorithm (md5, sha1, sha256, sha512)")
	flags.StringVarP(&options.OutputDir, "output", "o", ".", "directory for produced files")
	flags.StringVarP(&options.ConfigPath, "config", "c", "", "settings file to merge artifact entries into")

	_ = rootCmd.MarkFlagRequired("base-url")
}
