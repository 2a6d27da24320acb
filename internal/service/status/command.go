package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	api "github.com/oshokin/artifact-keeper/internal/api/grpc/status"
	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/service/common"
)

// Options configures the status query.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Wait polls until the storage root is SERVING or the context ends.
	Wait bool
	// Out receives the status table; defaults to os.Stdout.
	Out io.Writer
}

// Checker reports the serving status of one service name.
type Checker interface {
	Check(ctx context.Context, service string) (common.ServingStatus, error)
}

// Row is one line of the status table.
type Row struct {
	// Service is the health service name; empty is the storage root.
	Service string
	// Status is what the server reported.
	Status common.ServingStatus
}

// defaultPollInterval defines the delay between checks while waiting.
const defaultPollInterval = 2 * time.Second

// errNotServing is returned when the storage root is not fully provisioned.
var errNotServing = errors.New("artifacts are not all available")

// Run queries the server and prints the status table.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "artifact-status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	services := ServiceNames(cfg)

	if opts.Wait {
		if err = waitServing(ctx, client, defaultPollInterval); err != nil {
			return err
		}
	}

	rows, err := Query(ctx, client, services)
	if err != nil {
		return err
	}

	if err = PrintRows(out, rows); err != nil {
		return err
	}

	if rows[0].Status != common.StatusServing {
		return errNotServing
	}

	return nil
}

// ServiceNames lists the storage root, the configured categories and the configured artifacts.
func ServiceNames(cfg *config.Config) []string {
	var (
		categories []artifact.Category
		artifacts  = make([]string, 0, len(cfg.Artifacts))
	)

	for _, a := range cfg.Artifacts {
		if !slices.Contains(categories, a.Category) {
			categories = append(categories, a.Category)
		}

		artifacts = append(artifacts, api.ArtifactService(a.ID))
	}

	slices.Sort(categories)

	names := make([]string, 0, 1+len(categories)+len(artifacts))
	names = append(names, "")

	for _, category := range categories {
		names = append(names, api.CategoryService(category))
	}

	return append(names, artifacts...)
}

// Query checks every service name in order.
func Query(ctx context.Context, checker Checker, services []string) ([]Row, error) {
	rows := make([]Row, 0, len(services))

	for _, service := range services {
		status, err := checker.Check(ctx, service)
		if err != nil {
			return nil, err
		}

		rows = append(rows, Row{Service: service, Status: status})
	}

	return rows, nil
}

// PrintRows writes an aligned table of rows.
func PrintRows(out io.Writer, rows []Row) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.

	_, _ = fmt.Fprintln(w, "SERVICE\tSTATUS")

	for _, row := range rows {
		name := row.Service
		if name == "" {
			name = "(storage root)"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, row.Status)
	}

	return w.Flush()
}

// waitServing polls the storage root until it is SERVING.
func waitServing(ctx context.Context, checker Checker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := checker.Check(ctx, "")
		if err != nil {
			// Log error but continue polling for transient failures.
			logger.WarnKV(ctx, "Status check failed", "error", err)
		} else if status == common.StatusServing {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
