//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"crypto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/installer"
	"github.com/oshokin/artifact-keeper/internal/logger"
)

// TestNewStack verifies the configured algorithm and layout reach the collaborators.
func TestNewStack(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg := &config.Config{
		StorageRoot:     root,
		DigestAlgorithm: "sha256",
		PackagePrefix:   "game-",
	}
	require.NoError(t, config.Validate(cfg))

	stack, err := NewStack(cfg)
	require.NoError(t, err)
	require.Equal(t, crypto.SHA256, stack.Verifier.Hash())
	require.Equal(t, filepath.Join(root, "keys"), stack.Layout.Dir(artifact.CategoryKeys))
	require.Equal(t, "game-", stack.Layout.PackagePrefix)
	require.NotNil(t, stack.Store)
	require.NotNil(t, stack.Fetcher)
}

// TestNewInstaller_UnknownContentType verifies only update packages are routed to an installer.
func TestNewInstaller_UnknownContentType(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{StorageRoot: t.TempDir()}
	require.NoError(t, config.Validate(cfg))

	stack, err := NewStack(cfg)
	require.NoError(t, err)

	err = stack.Installer.Install(context.Background(), installer.Request{
		Path:        filepath.Join(cfg.StorageRoot, "fw.zip"),
		ContentType: "application/zip",
	})
	require.ErrorIs(t, err, installer.ErrInstallUnavailable)
}

// TestNewInstaller_ReplaceMode applies an update package over the configured target.
func TestNewInstaller_ReplaceMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "app")
	require.NoError(t, os.WriteFile(target, []byte("old binary"), 0o755))

	contents := []byte("new binary")
	pkg := filepath.Join(dir, "app-1.4.1.pkg")
	require.NoError(t, os.WriteFile(pkg, contents, 0o600))

	verifier, err := digest.NewVerifier(digest.DefaultAlgorithm)
	require.NoError(t, err)

	sum, err := verifier.DigestOf(pkg)
	require.NoError(t, err)

	router := NewInstaller(config.Install{Mode: config.InstallModeReplace, Target: target}, verifier)
	require.NoError(t, router.Install(context.Background(), installer.Request{
		Path:        pkg,
		ContentType: installer.ContentTypePackage,
		DigestHex:   sum,
	}))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, contents, got)
}

// TestLoadStack reads a settings file from disk.
func TestLoadStack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte("storage_root: "+dir+"\n"), 0o600))

	stack, err := LoadStack(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, dir, stack.Config.StorageRoot)

	_, err = LoadStack(context.Background(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

// TestLoadStack_LogFile verifies logging settings from the file reach the global logger.
//
//nolint:paralleltest // Swaps the global log output.
func TestLoadStack_LogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "keeper.log")
	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, &config.Config{
		StorageRoot: dir,
		LogLevel:    "info",
		LogFile:     logPath,
	}))

	ctx := logger.WithName(context.Background(), "stack-test")

	stack, err := LoadStack(ctx, path)
	require.NoError(t, err)

	logger.InfoKV(ctx, "Stack ready", "storage_root", stack.Config.StorageRoot)
	stack.Close()

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(contents), "Stack ready")
}
