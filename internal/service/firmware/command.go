package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/artifact-keeper/internal/lock"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/progress"
	"github.com/oshokin/artifact-keeper/internal/repository/ledger"
	"github.com/oshokin/artifact-keeper/internal/service/common"
)

// errNoFirmware is returned when the settings have no firmware section.
var errNoFirmware = errors.New("firmware is not configured")

// Options are inputs accepted by the firmware-fetch entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// Out receives the progress line and the summary; defaults to os.Stdout.
	Out io.Writer
}

// Run acquires the configured firmware bundle and records the outcome in the ledger.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "firmware-fetch")

	stack, err := common.LoadStack(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer stack.Close()

	desc, ok, err := stack.Config.FirmwareDescriptor()
	if err != nil {
		return err
	}

	if !ok {
		return errNoFirmware
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	marker := lock.NewMarker(stack.Config.StorageRoot)
	if err = marker.Acquire(ctx); err != nil {
		return err
	}
	defer marker.Release(ctx)

	console := progress.NewConsole(out, "Firmware")

	acquisition := New(desc, stack.Layout, stack.Fetcher, stack.Store,
		WithProgress(console.Observer()))

	report, runErr := acquisition.Run(ctx)
	console.Close()

	repo := ledger.NewFileRepository(stack.Config.LedgerFile)
	if err = repo.Put(ctx, ledger.NewRecord(desc, report.Outcome, time.Now())); err != nil {
		logger.WarnKV(ctx, "Unable to update ledger", "error", err)
	}

	if runErr != nil {
		_, _ = fmt.Fprintf(out, "Firmware acquisition failed: %v\n", runErr)

		return runErr
	}

	if report.Extracted {
		_, _ = fmt.Fprintf(out, "Firmware extracted to %s\n", stack.Layout.FirmwareRoot())
	} else {
		_, _ = fmt.Fprintln(out, "Firmware is already installed")
	}

	return nil
}
