package provisioner

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/repository/ledger"
)

// Store makes sure a verified local copy of an artifact exists.
type Store interface {
	Ensure(ctx context.Context, desc artifact.Descriptor, opts ...fetcher.FetchOption) artifact.Outcome
}

// Report is the result of ensuring one artifact.
type Report struct {
	// Descriptor is the artifact that was ensured.
	Descriptor artifact.Descriptor
	// Outcome is what Ensure returned.
	Outcome artifact.Outcome
	// Elapsed is how long Ensure took.
	Elapsed time.Duration
}

// Provisioner ensures sets of artifacts concurrently.
type Provisioner struct {
	store  Store
	ledger ledger.Repository
	now    func() time.Time
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLedger records every outcome in repo.
func WithLedger(repo ledger.Repository) Option {
	return func(p *Provisioner) {
		p.ledger = repo
	}
}

// New returns a Provisioner ensuring artifacts through s.
func New(s Store, opts ...Option) *Provisioner {
	p := &Provisioner{
		store: s,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// EnsureAll ensures every descriptor and returns one report per descriptor, in input order.
func (p *Provisioner) EnsureAll(ctx context.Context, descs []artifact.Descriptor) []Report {
	ctx = logger.WithName(ctx, "provisioner")

	var (
		reports = make([]Report, len(descs))
		groups  = make(map[artifact.Category][]int, len(artifact.Categories()))
		wg      sync.WaitGroup
	)

	for i, desc := range descs {
		groups[desc.Category()] = append(groups[desc.Category()], i)
	}

	for category, indexes := range groups {
		wg.Go(func() {
			categoryCtx := logger.WithKV(ctx, "category", category.String())

			for _, i := range indexes {
				reports[i] = p.ensure(categoryCtx, descs[i])
			}
		})
	}

	wg.Wait()

	p.record(ctx, reports)

	return reports
}

// Start runs EnsureAll in the background. The channel receives the reports once and is closed.
func (p *Provisioner) Start(ctx context.Context, descs []artifact.Descriptor) <-chan []Report {
	results := make(chan []Report, 1)

	go func() {
		defer close(results)

		results <- p.EnsureAll(ctx, descs)
	}()

	return results
}

// ensure runs one Ensure call and logs its outcome.
func (p *Provisioner) ensure(ctx context.Context, desc artifact.Descriptor) Report {
	ctx = logger.WithKV(ctx, "artifact", desc.Identifier())

	started := p.now()
	outcome := p.store.Ensure(ctx, desc)
	report := Report{
		Descriptor: desc,
		Outcome:    outcome,
		Elapsed:    p.now().Sub(started),
	}

	if outcome.OK() {
		logger.InfoKV(ctx, "Artifact is valid", "outcome", outcome.Kind, "elapsed", report.Elapsed)
	} else {
		logger.WarnKV(ctx, "Artifact is not available", "outcome", outcome.Kind, "error", outcome.Err)
	}

	return report
}

// record stores the outcomes in the ledger, if one is configured.
func (p *Provisioner) record(ctx context.Context, reports []Report) {
	if p.ledger == nil || len(reports) == 0 {
		return
	}

	checkedAt := p.now()
	records := make([]ledger.Record, 0, len(reports))

	for _, report := range reports {
		records = append(records, ledger.NewRecord(report.Descriptor, report.Outcome, checkedAt))
	}

	if err := p.ledger.Put(ctx, records...); err != nil {
		logger.WarnKV(ctx, "Unable to update ledger", "error", err)
	}
}

// Failed returns the reports whose outcome left no usable local copy.
func Failed(reports []Report) []Report {
	var failed []Report

	for _, report := range reports {
		if !report.Outcome.OK() {
			failed = append(failed, report)
		}
	}

	return failed
}
