package updater

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/domain/release"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/installer"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/store"
)

// DefaultMaxDownloadAttempts bounds failed downloads within one cycle.
const DefaultMaxDownloadAttempts = 3

var (
	// ErrAlreadyRunning is returned when Run is called while another cycle is active.
	ErrAlreadyRunning = errors.New("update cycle already running")
	// errMissingDependency is returned when a required collaborator is nil.
	errMissingDependency = errors.New("missing dependency")
	// errTooManyDownloads is wrapped into the last download error when attempts run out.
	errTooManyDownloads = errors.New("download attempts exhausted")
)

// MetadataClient returns the latest published release.
type MetadataClient interface {
	FetchLatest(ctx context.Context) release.UpdateInfo
}

// Store makes sure a verified local copy of an artifact exists.
type Store interface {
	Ensure(ctx context.Context, desc artifact.Descriptor, opts ...fetcher.FetchOption) artifact.Outcome
}

// Verifier checks a local file against a digest.
type Verifier interface {
	IsValid(path, expectedHex string) bool
}

// Dependencies are the collaborators of a Coordinator.
type Dependencies struct {
	// Metadata reports the latest release.
	Metadata MetadataClient
	// Store fetches and verifies the update package.
	Store Store
	// Verifier checks an already downloaded package.
	Verifier Verifier
	// Hash is the algorithm of published digests; zero means digest.DefaultAlgorithm.
	Hash crypto.Hash
	// Decider supplies the user's choice.
	Decider Decider
	// Installer starts the installation of the verified package.
	Installer installer.Trigger
	// Notifier shows errors and progress to the user.
	Notifier Notifier
	// Layout derives the package path from the version name and download URL.
	Layout store.Layout
	// CurrentVersion is the running version.
	CurrentVersion string
	// MaxDownloadAttempts bounds failed downloads; zero means DefaultMaxDownloadAttempts.
	MaxDownloadAttempts int
	// OnTransition, if set, is called for every state change.
	OnTransition func(Transition)
}

// Coordinator drives update cycles. A Coordinator runs one cycle at a time.
type Coordinator struct {
	deps    Dependencies
	running atomic.Bool
}

// NewCoordinator validates deps and returns a Coordinator.
func NewCoordinator(deps Dependencies) (*Coordinator, error) {
	switch {
	case deps.Metadata == nil:
		return nil, fmt.Errorf("metadata client: %w", errMissingDependency)
	case deps.Store == nil:
		return nil, fmt.Errorf("store: %w", errMissingDependency)
	case deps.Verifier == nil:
		return nil, fmt.Errorf("verifier: %w", errMissingDependency)
	case deps.Decider == nil:
		return nil, fmt.Errorf("decider: %w", errMissingDependency)
	case deps.Installer == nil:
		return nil, fmt.Errorf("installer: %w", errMissingDependency)
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier: %w", errMissingDependency)
	}

	if deps.Hash == 0 {
		deps.Hash = digest.DefaultAlgorithm
	}

	if deps.MaxDownloadAttempts <= 0 {
		deps.MaxDownloadAttempts = DefaultMaxDownloadAttempts
	}

	return &Coordinator{deps: deps}, nil
}

// Start runs one cycle in the background. The returned channel receives
// exactly one Result and is then closed.
func (c *Coordinator) Start(ctx context.Context) <-chan *Result {
	results := make(chan *Result, 1)

	go func() {
		defer close(results)

		result, _ := c.Run(ctx)
		results <- result
	}()

	return results
}

// Run executes one update cycle and returns its result.
// The error is non-nil exactly when the cycle ends in StateFailed.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return &Result{State: StateFailed, Err: ErrAlreadyRunning}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	cyc := &cycle{
		deps:   &c.deps,
		result: &Result{State: StateIdle},
	}

	cyc.run(logger.WithName(ctx, "updater"))

	return cyc.result, cyc.result.Err
}

// cycle holds the state of a single Run.
type cycle struct {
	deps   *Dependencies
	result *Result
}

// run walks the state machine until a terminal state is reached.
func (c *cycle) run(ctx context.Context) {
	c.moveTo(ctx, StateCheckingMetadata)

	info := c.deps.Metadata.FetchLatest(ctx)
	if info.IsEmpty() || !release.IsNewer(c.deps.CurrentVersion, info.VersionName) {
		logger.InfoKV(ctx, "No update available",
			"current_version", c.deps.CurrentVersion,
			"published_version", info.VersionName)
		c.moveTo(ctx, StateNoUpdate)

		return
	}

	// An unverifiable package is never offered.
	if strings.TrimSpace(info.DigestHex) == "" {
		logger.WarnKV(ctx, "Published release has no digest, ignoring it", "version", info.VersionName)
		c.moveTo(ctx, StateNoUpdate)

		return
	}

	if !digest.ValidHex(c.deps.Hash, info.DigestHex) {
		logger.WarnKV(ctx, "Published release has a malformed digest, ignoring it",
			"version", info.VersionName,
			"digest", info.DigestHex,
			"algorithm", c.deps.Hash.String())
		c.moveTo(ctx, StateNoUpdate)

		return
	}

	c.result.Info = info
	c.moveTo(ctx, StateUpdateAvailable)

	path := c.deps.Layout.UpdatePackagePath(info.VersionName, info.DownloadURL)
	c.result.PackagePath = path

	desc, err := artifact.NewDescriptor("update-"+info.VersionName, info.DownloadURL, path,
		info.DigestHex, artifact.CategoryUpdatePackage)
	if err != nil {
		c.fail(ctx, fmt.Errorf("describe update package: %w", err))

		return
	}

	prompt := Prompt{
		Info:           info,
		CurrentVersion: c.deps.CurrentVersion,
		PackageReady:   c.deps.Verifier.IsValid(path, info.DigestHex),
	}

	logger.InfoKV(ctx, "Update available",
		"version", info.VersionName,
		"package", path,
		"package_ready", prompt.PackageReady)

	c.decideAndInstall(ctx, desc, prompt)
}

// decideAndInstall loops between asking the user and downloading until the
// package is installed, deferred, or the cycle fails.
func (c *cycle) decideAndInstall(ctx context.Context, desc artifact.Descriptor, prompt Prompt) {
	for {
		c.moveTo(ctx, StateAwaitingUserChoice)

		choice, err := c.deps.Decider.Decide(ctx, prompt)
		if err != nil {
			c.fail(ctx, fmt.Errorf("await user choice: %w", err))

			return
		}

		if choice != ChoiceProceed {
			logger.InfoKV(ctx, "Update deferred", "version", prompt.Info.VersionName)
			c.moveTo(ctx, StateDeferred)

			return
		}

		if !prompt.PackageReady {
			outcome := c.download(ctx, desc)
			if !outcome.OK() {
				prompt.Attempt++
				prompt.LastError = outcome.Err

				c.deps.Notifier.Error(ctx, MessageDownloadFailed)
				logger.WarnKV(ctx, "Update package download failed",
					"attempt", prompt.Attempt,
					"error", outcome.Err)

				if prompt.Attempt >= c.deps.MaxDownloadAttempts || ctx.Err() != nil {
					c.fail(ctx, fmt.Errorf("%w: %w", errTooManyDownloads, outcome.Err))

					return
				}

				continue
			}

			prompt.PackageReady = true
		}

		c.install(ctx, desc)

		return
	}
}

// download fetches the package through the store with progress forwarded to the notifier.
func (c *cycle) download(ctx context.Context, desc artifact.Descriptor) artifact.Outcome {
	c.moveTo(ctx, StateDownloading)

	return c.deps.Store.Ensure(ctx, desc, fetcher.WithProgress(c.deps.Notifier.Progress))
}

// install hands the verified package to the install trigger. Install errors are never retried.
func (c *cycle) install(ctx context.Context, desc artifact.Descriptor) {
	c.moveTo(ctx, StateInstalling)

	err := c.deps.Installer.Install(ctx, installer.Request{
		Path:        desc.DestinationPath(),
		ContentType: installer.ContentTypePackage,
		DigestHex:   desc.ExpectedDigest(),
	})

	switch {
	case err == nil:
		logger.InfoKV(ctx, "Update handed to installer", "package", desc.DestinationPath())
		c.moveTo(ctx, StateInstalled)
	case errors.Is(err, installer.ErrInstallUnavailable):
		c.deps.Notifier.Error(ctx, MessageNoInstaller)
		c.fail(ctx, err)
	default:
		c.deps.Notifier.Error(ctx, fmt.Sprintf("%s: %v", MessageInstallFailed, err))
		c.fail(ctx, err)
	}
}

// fail records err and moves to StateFailed.
func (c *cycle) fail(ctx context.Context, err error) {
	c.result.Err = err
	logger.ErrorKV(ctx, "Update cycle failed", "state", c.result.State, "error", err)
	c.moveTo(ctx, StateFailed)
}

// moveTo records a transition, logs it and calls the transition hook.
func (c *cycle) moveTo(ctx context.Context, next State) {
	transition := Transition{From: c.result.State, To: next}

	c.result.State = next
	c.result.Transitions = append(c.result.Transitions, transition)

	logger.DebugKV(ctx, "Update state changed", "from", transition.From, "to", transition.To)

	if c.deps.OnTransition != nil {
		c.deps.OnTransition(transition)
	}
}
