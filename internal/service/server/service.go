package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/logger"
	repo "github.com/oshokin/artifact-keeper/internal/repository/ledger"
	"github.com/oshokin/artifact-keeper/internal/service/provisioner"
)

// Publisher receives the current records after every refresh.
type Publisher interface {
	Publish(records []repo.Record)
}

// Guard serialises refreshes with other processes working on the storage root.
type Guard interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context)
}

// service encapsulates the refresh loop and ledger orchestration.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// provisioner ensures the artifacts.
	provisioner *provisioner.Provisioner
	// descs are the artifacts kept valid.
	descs []artifact.Descriptor
	// tracked maps the identifiers of published artifacts to their categories.
	// Ledger records of any other artifact are stale and never published.
	tracked map[string]artifact.Category
	// repo persists the outcomes.
	repo repo.Repository
	// publisher exposes the outcomes to clients.
	publisher Publisher
	// guard is held while a refresh runs.
	guard Guard
	// interval is the pause between refreshes.
	interval time.Duration
}

// newService publishes the records already in the ledger so clients see the
// last known state before the first refresh finishes.
// Outcomes of extra are published but never refreshed; other processes record them.
func newService(
	ctx context.Context,
	p *provisioner.Provisioner,
	descs []artifact.Descriptor,
	extra []artifact.Descriptor,
	repository repo.Repository,
	publisher Publisher,
	guard Guard,
	interval time.Duration,
) (*service, error) {
	s := &service{
		provisioner: p,
		descs:       descs,
		tracked:     make(map[string]artifact.Category, len(descs)+len(extra)),
		repo:        repository,
		publisher:   publisher,
		guard:       guard,
		interval:    interval,
	}

	for _, desc := range descs {
		s.tracked[desc.Identifier()] = desc.Category()
	}

	for _, desc := range extra {
		s.tracked[desc.Identifier()] = desc.Category()
	}

	records, err := repository.Load(ctx)
	switch {
	case err == nil:
		s.publisher.Publish(s.current(ctx, records))
	case errors.Is(err, repo.ErrNotFound):
		// Nothing checked yet.
	default:
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	return s, nil
}

// loop refreshes immediately and then every interval until ctx is canceled.
func (s *service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// refresh ensures every artifact and publishes the resulting ledger.
// A refresh is skipped while another process holds the storage root.
func (s *service) refresh(ctx context.Context) {
	if err := s.guard.Acquire(ctx); err != nil {
		logger.WarnKV(ctx, "Skipping refresh", "error", err)

		return
	}

	reports := s.provisioner.EnsureAll(ctx, s.descs)
	s.guard.Release(ctx)

	records, err := s.repo.Load(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read ledger, publishing this refresh only", "error", err)

		records = make([]repo.Record, 0, len(reports))
		for _, report := range reports {
			records = append(records, repo.NewRecord(report.Descriptor, report.Outcome, time.Now()))
		}
	}

	s.publisher.Publish(s.current(ctx, records))

	logger.InfoKV(ctx, "Artifacts refreshed",
		"total", len(reports),
		"failed", len(provisioner.Failed(reports)))
}

// current drops records of artifacts that are no longer configured, or that
// moved to another category, so they cannot hold the storage root NOT_SERVING.
func (s *service) current(ctx context.Context, records []repo.Record) []repo.Record {
	kept := make([]repo.Record, 0, len(records))

	for _, record := range records {
		category, ok := s.tracked[record.ID]
		if !ok || category != record.Category {
			logger.DebugKV(ctx, "Skipping stale ledger record", "artifact", record.ID, "category", record.Category)

			continue
		}

		kept = append(kept, record)
	}

	return kept
}
