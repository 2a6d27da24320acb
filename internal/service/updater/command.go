package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/artifact-keeper/internal/lock"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/metadata"
	"github.com/oshokin/artifact-keeper/internal/service/common"
	"github.com/oshokin/artifact-keeper/internal/version"
)

// errNoMetadataURL is returned when the settings do not name a metadata endpoint.
var errNoMetadataURL = errors.New("metadata_url is not configured")

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// AssumeYes installs without asking.
	AssumeYes bool
	// CheckOnly reports an available update and defers it.
	CheckOnly bool
	// CurrentVersion overrides the running version; empty means the build version.
	CurrentVersion string
	// MaxDownloadAttempts overrides DefaultMaxDownloadAttempts when positive.
	MaxDownloadAttempts int
	// In supplies interactive answers; defaults to os.Stdin.
	In io.Reader
	// Out receives prompts, progress and the summary; defaults to os.Stdout.
	Out io.Writer
}

// Run executes one update cycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "app-updater")

	stack, err := common.LoadStack(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer stack.Close()

	if stack.Config.MetadataURL == "" {
		return errNoMetadataURL
	}

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	marker := lock.NewMarker(stack.Config.StorageRoot)
	if err = marker.Acquire(ctx); err != nil {
		return err
	}
	defer marker.Release(ctx)

	notifier := NewConsoleNotifier(out)
	defer notifier.Close()

	currentVersion := opts.CurrentVersion
	if currentVersion == "" {
		currentVersion = version.Short()
	}

	coordinator, err := NewCoordinator(Dependencies{
		Metadata:            metadata.NewClient(stack.HTTPClient, stack.Config.MetadataURL),
		Store:               stack.Store,
		Verifier:            stack.Verifier,
		Hash:                stack.Verifier.Hash(),
		Decider:             chooseDecider(opts, in, out),
		Installer:           stack.Installer,
		Notifier:            notifier,
		Layout:              stack.Layout,
		CurrentVersion:      currentVersion,
		MaxDownloadAttempts: opts.MaxDownloadAttempts,
	})
	if err != nil {
		return fmt.Errorf("initialise coordinator: %w", err)
	}

	result, err := coordinator.Run(ctx)

	// The summary goes after the last progress line.
	notifier.Close()
	printSummary(out, result)

	return err
}

// chooseDecider picks the decider matching the command-line flags.
//
//nolint:ireturn // Callers only need the Decider behaviour.
func chooseDecider(opts *Options, in io.Reader, out io.Writer) Decider {
	switch {
	case opts.CheckOnly:
		return StaticDecider(ChoiceDefer)
	case opts.AssumeYes:
		return StaticDecider(ChoiceProceed)
	default:
		return NewConsoleDecider(in, out)
	}
}

// printSummary writes a single line describing the terminal state.
func printSummary(out io.Writer, result *Result) {
	if result == nil {
		return
	}

	switch result.State {
	case StateNoUpdate:
		_, _ = fmt.Fprintln(out, "No update available")
	case StateDeferred:
		_, _ = fmt.Fprintf(out, "Update %s is available and was deferred\n", result.Info.VersionName)
	case StateInstalled:
		_, _ = fmt.Fprintf(out, "Update %s handed to the installer\n", result.Info.VersionName)
	case StateFailed:
		_, _ = fmt.Fprintf(out, "Update failed: %v\n", result.Err)
	default:
		_, _ = fmt.Fprintf(out, "Update cycle ended in state %s\n", result.State)
	}
}
