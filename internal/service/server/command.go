package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	api "github.com/oshokin/artifact-keeper/internal/api/grpc/status"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/lock"
	"github.com/oshokin/artifact-keeper/internal/logger"
	repository "github.com/oshokin/artifact-keeper/internal/repository/ledger"
	"github.com/oshokin/artifact-keeper/internal/service/common"
	"github.com/oshokin/artifact-keeper/internal/service/provisioner"
)

// Options controls the artifact-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// LedgerFile overrides the ledger location from the settings.
	LedgerFile string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and the refresh loop and blocks until context is canceled.
// Loads configuration first, then determines listen address from config or override.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "artifact-server")

	stack, err := common.LoadStack(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer stack.Close()

	settings := stack.Config

	// Use LedgerFile from config unless overridden by command line option.
	ledgerFile := settings.LedgerFile
	if opts.LedgerFile != "" {
		ledgerFile = opts.LedgerFile
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	descs, err := settings.Descriptors()
	if err != nil {
		return err
	}

	// Firmware is acquired by firmware-fetch; the server only reports it.
	var extra []artifact.Descriptor

	firmware, ok, err := settings.FirmwareDescriptor()
	if err != nil {
		return err
	}

	if ok {
		extra = append(extra, firmware)
	}

	var (
		repo      = repository.NewFileRepository(ledgerFile)
		publisher = api.NewServer()
		p         = provisioner.New(stack.Store, provisioner.WithLedger(repo))
	)

	svc, err := newService(ctx, p, descs, extra, repo, publisher,
		lock.NewMarker(settings.StorageRoot), settings.RefreshInterval)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	publisher.Register(grpcServer)

	logger.InfoKV(ctx, "Artifact server listening",
		"listen_address", listenAddress,
		"ledger_file", ledgerFile,
		"artifacts", len(descs),
		"refresh_interval", settings.RefreshInterval)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	var refreshes sync.WaitGroup

	refreshes.Go(func() { svc.loop(refreshContext(ctx, settings.RefreshLogLevel)) })

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		publisher.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	refreshes.Wait()
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// refreshContext names the logger of background refreshes and applies their own level, if configured.
func refreshContext(ctx context.Context, levelName string) context.Context {
	if level, ok := logger.ParseLogLevel(levelName); ok {
		return logger.WithComponentLevel(ctx, "refresh", level)
	}

	return logger.WithName(ctx, "refresh")
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
