package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/lock"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/repository/ledger"
	"github.com/oshokin/artifact-keeper/internal/service/common"
)

// errArtifactsUnavailable is returned when at least one artifact could not be made valid.
var errArtifactsUnavailable = errors.New("some artifacts are not available")

// Options are inputs accepted by the artifact-ensure entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// Categories limits the run to these categories; empty means all.
	Categories []artifact.Category
	// Out receives the summary table; defaults to os.Stdout.
	Out io.Writer
}

// Run ensures every configured artifact and prints one line per artifact.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "artifact-ensure")

	stack, err := common.LoadStack(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer stack.Close()

	descs, err := stack.Config.Descriptors()
	if err != nil {
		return err
	}

	if len(opts.Categories) > 0 {
		descs = slices.DeleteFunc(descs, func(d artifact.Descriptor) bool {
			return !slices.Contains(opts.Categories, d.Category())
		})
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

	p := New(stack.Store, WithLedger(ledger.NewFileRepository(stack.Config.LedgerFile)))
	reports := p.EnsureAll(ctx, descs)

	if err = PrintReports(out, reports); err != nil {
		return err
	}

	if failed := Failed(reports); len(failed) > 0 {
		return fmt.Errorf("%d of %d: %w", len(failed), len(reports), errArtifactsUnavailable)
	}

	return nil
}

// PrintReports writes an aligned table of reports.
func PrintReports(out io.Writer, reports []Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.

	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tOUTCOME\tPATH")

	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Descriptor.Identifier(),
			r.Descriptor.Category(),
			r.Outcome.Message(),
			r.Descriptor.DestinationPath())
	}

	return w.Flush()
}
