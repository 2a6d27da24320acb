//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/installer"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/store"
)

// Stack bundles the collaborators the services build from one Config.
type Stack struct {
	// Config is the validated configuration.
	Config *config.Config
	// Verifier computes digests with the configured algorithm.
	Verifier *digest.Verifier
	// HTTPClient is shared by the fetcher and the metadata client.
	HTTPClient *http.Client
	// Fetcher retries network failures per the configured policy.
	Fetcher *fetcher.Retrying
	// Store verifies and fetches artifacts.
	Store *store.Store
	// Layout maps categories to directories under the storage root.
	Layout store.Layout
	// Installer routes install requests by content type.
	Installer *installer.Router

	// closeLog flushes the configured log outputs.
	closeLog func()
}

// LoadStack reads the configuration at path, applies its logging settings and builds a Stack.
// Call Close when done so the log file is flushed.
func LoadStack(ctx context.Context, path string) (*Stack, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	closeLog, err := logger.Configure(logger.Output{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		logger.WarnKV(ctx, "Ignoring logging settings", "error", err)
	}

	stack, err := NewStack(cfg)
	if err != nil {
		if closeLog != nil {
			closeLog()
		}

		return nil, err
	}

	stack.closeLog = closeLog

	return stack, nil
}

// Close flushes log outputs opened by LoadStack.
func (s *Stack) Close() {
	if s.closeLog != nil {
		s.closeLog()
	}
}

// NewStack wires the verifier, fetcher, store and installer from cfg.
func NewStack(cfg *config.Config) (*Stack, error) {
	hash, err := cfg.Hash()
	if err != nil {
		return nil, err
	}

	verifier, err := digest.NewVerifier(hash)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	var (
		httpClient = fetcher.NewHTTPClient(cfg.Timeout)
		retrying   = fetcher.NewRetrying(fetcher.New(httpClient), cfg.RetryPolicy())
		layout     = cfg.Layout()
	)

	return &Stack{
		Config:     cfg,
		Verifier:   verifier,
		HTTPClient: httpClient,
		Fetcher:    retrying,
		Store:      store.New(retrying, verifier, store.WithMismatchRetries(cfg.MismatchRetries)),
		Layout:     layout,
		Installer:  NewInstaller(cfg.Install, verifier),
	}, nil
}

// NewInstaller builds the install router for the configured install mode.
// Only update packages are routed; firmware is extracted by its own acquisition.
func NewInstaller(settings config.Install, verifier *digest.Verifier) *installer.Router {
	var packages installer.Trigger

	switch settings.Mode {
	case config.InstallModeReplace:
		packages = installer.NewBinaryApplier(settings.Target, verifier.Hash())
	case config.InstallModeCommand:
		packages = installer.NewCommandTrigger(settings.Command...)
	default:
		packages = installer.NewCommandTrigger()
	}

	return installer.NewRouter().Handle(installer.ContentTypePackage, packages)
}
