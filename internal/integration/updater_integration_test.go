package integration

import (
	"bytes"
	"context"
	"crypto"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/service/packager"
	"github.com/oshokin/artifact-keeper/internal/service/updater"
)

// TestUpdater_Run_FetchesPublishedPackage publishes a package with the packager and verifies the updater
// downloads it into the storage root before failing to find the configured installer.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestUpdater_Run_FetchesPublishedPackage(t *testing.T) {
	t.Parallel()

	public := t.TempDir()
	packagePath := filepath.Join(public, "app-2.0.0.pkg")
	require.NoError(t, os.WriteFile(packagePath, bytes.Repeat([]byte("update-package"), 4096), 0o600))

	// Serve published files with explicit sizes so progress is reported.
	ts := httptest.NewServer(http.FileServer(http.Dir(public)))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := packager.Run(ctx, &packager.Options{
		PackagePath: packagePath,
		VersionName: "2.0.0",
		BaseURL:     ts.URL,
		OutputDir:   public,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(public, packager.MetadataFilename), result.Metadata)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		StorageRoot: filepath.Join(dir, "storage"),
		MetadataURL: ts.URL + "/" + packager.MetadataFilename,
		Install: config.Install{
			Mode:    config.InstallModeCommand,
			Command: []string{"nonexistent-installer-binary", "{path}"},
		},
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	var out bytes.Buffer

	err = updater.Run(ctx, &updater.Options{
		ConfigPath:     cfgPath,
		AssumeYes:      true,
		CurrentVersion: "1.9.9",
		Out:            &out,
	})
	require.Error(t, err)
	require.Contains(t, out.String(), updater.MessageNoInstaller)

	// The package was downloaded and verified before the installer lookup failed.
	downloaded := cfg.Layout().UpdatePackagePath("2.0.0", ts.URL+"/app-2.0.0.pkg")

	verifier, err := digest.NewVerifier(crypto.MD5)
	require.NoError(t, err)

	want, err := verifier.DigestOf(packagePath)
	require.NoError(t, err)
	require.True(t, verifier.IsValid(downloaded, want))

	// A second run finds the valid package and skips the download.
	out.Reset()

	err = updater.Run(ctx, &updater.Options{
		ConfigPath:     cfgPath,
		CheckOnly:      true,
		CurrentVersion: "1.9.9",
		Out:            &out,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "deferred")

	// An up-to-date client sees nothing to do.
	out.Reset()

	err = updater.Run(ctx, &updater.Options{
		ConfigPath:     cfgPath,
		CurrentVersion: "2.0.0",
		Out:            &out,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "No update available")
}
