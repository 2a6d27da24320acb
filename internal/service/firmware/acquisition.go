package firmware

import (
	"context"
	"errors"
	"os"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/progress"
	"github.com/oshokin/artifact-keeper/internal/store"
)

// errNoFetcher is returned when an unverified bundle has no fetcher to use.
var errNoFetcher = errors.New("no fetcher configured")

// Store makes sure a verified local copy of an artifact exists.
type Store interface {
	Ensure(ctx context.Context, desc artifact.Descriptor, opts ...fetcher.FetchOption) artifact.Outcome
}

// Report describes one acquisition.
type Report struct {
	// Outcome is AlreadyValid when nothing had to be done.
	Outcome artifact.Outcome
	// Archive is the local archive path.
	Archive string
	// Extracted is true when the archive was unpacked during this run.
	Extracted bool
}

// Acquisition downloads and extracts one firmware bundle.
type Acquisition struct {
	desc      artifact.Descriptor
	layout    store.Layout
	fetcher   fetcher.Interface
	store     Store
	extractor Extractor
	observer  progress.Observer
}

// Option configures an Acquisition.
type Option func(*Acquisition)

// WithProgress forwards download progress to observer.
// The observer runs on the download goroutine and must not block;
// wrap a foreground consumer with progress.Notifier.
func WithProgress(observer progress.Observer) Option {
	return func(a *Acquisition) {
		a.observer = observer
	}
}

// WithExtractor replaces the default ZipExtractor.
func WithExtractor(extractor Extractor) Option {
	return func(a *Acquisition) {
		if extractor != nil {
			a.extractor = extractor
		}
	}
}

// New returns an Acquisition of desc. Verified descriptors go through s;
// unverified ones are fetched directly with f.
func New(desc artifact.Descriptor, layout store.Layout, f fetcher.Interface, s Store, opts ...Option) *Acquisition {
	a := &Acquisition{
		desc:      desc,
		layout:    layout,
		fetcher:   f,
		store:     s,
		extractor: ZipExtractor{},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// IsInstalled reports whether the archive exists and the marker directory is non-empty.
func (a *Acquisition) IsInstalled() bool {
	if _, err := os.Stat(a.desc.DestinationPath()); err != nil {
		return false
	}

	entries, err := os.ReadDir(a.layout.FirmwareMarkerPath())

	return err == nil && len(entries) > 0
}

// Run downloads the archive if needed and extracts it into the firmware root.
func (a *Acquisition) Run(ctx context.Context) (*Report, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "firmware"), "archive", a.desc.DestinationPath())

	report := &Report{Archive: a.desc.DestinationPath()}

	if a.IsInstalled() {
		logger.Info(ctx, "Firmware is already installed")

		report.Outcome = artifact.AlreadyValid()

		return report, nil
	}

	report.Outcome = a.download(ctx)
	if !report.Outcome.OK() {
		logger.ErrorKV(ctx, "Firmware download failed", "error", report.Outcome.Err)

		return report, report.Outcome.Err
	}

	logger.InfoKV(ctx, "Extracting firmware", "destination", a.layout.FirmwareRoot())

	if err := a.extractor.Extract(ctx, a.desc.DestinationPath(), a.layout.FirmwareRoot()); err != nil {
		report.Outcome = artifact.IOFailure(err)

		return report, report.Outcome.Err
	}

	report.Extracted = true

	if !a.IsInstalled() {
		logger.WarnKV(ctx, "Firmware archive has no registered contents", "marker", a.layout.FirmwareMarkerPath())
	}

	return report, nil
}

// download fetches the archive, verified through the store when a digest is known.
func (a *Acquisition) download(ctx context.Context) artifact.Outcome {
	opts := []fetcher.FetchOption{fetcher.WithProgress(a.observer)}

	if a.desc.Verified() {
		return a.store.Ensure(ctx, a.desc, opts...)
	}

	logger.Warn(ctx, "Firmware has no expected digest, the archive is not verified")

	if a.fetcher == nil {
		return artifact.NetworkFailure(errNoFetcher)
	}

	return a.fetcher.Fetch(ctx, a.desc.SourceURL(), a.desc.DestinationPath(), opts...)
}
