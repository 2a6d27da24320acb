package firmware

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // The published digests are MD5.
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/progress"
	"github.com/oshokin/artifact-keeper/internal/store"
)

// buildZip returns an archive holding files.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)

		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // See import.

	return hex.EncodeToString(sum[:])
}

// firmwareServer serves archive and counts requests.
func firmwareServer(t *testing.T, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

// newAcquisition wires a real fetcher and store around server.
func newAcquisition(t *testing.T, server *httptest.Server, digestHex string, opts ...Option) (*Acquisition, store.Layout) {
	t.Helper()

	verifier, err := digest.NewVerifier(digest.DefaultAlgorithm)
	require.NoError(t, err)

	layout := store.NewLayout(t.TempDir())
	desc, err := artifact.NewDescriptor("firmware", server.URL+"/fw.zip",
		layout.PathFor(artifact.CategoryFirmware, "fw.zip"), digestHex, artifact.CategoryFirmware)
	require.NoError(t, err)

	f := fetcher.New(server.Client())

	return New(desc, layout, f, store.New(f, verifier), opts...), layout
}

// TestRun_DownloadsAndExtracts covers the fresh install path with progress.
func TestRun_DownloadsAndExtracts(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{
		"nand/system/Contents/registered/000.nca": "content",
		"nand/system/save/8000000000000120":       "save",
	})
	server, hits := firmwareServer(t, archive)

	var last atomic.Int32

	acquisition, layout := newAcquisition(t, server, md5Hex(archive),
		WithProgress(func(e progress.Event) { last.Store(int32(e.Percent)) }))
	require.False(t, acquisition.IsInstalled())

	report, err := acquisition.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Extracted)
	require.Equal(t, artifact.OutcomeSuccess, report.Outcome.Kind)
	require.Equal(t, int32(progress.MaxPercent), last.Load())
	require.True(t, acquisition.IsInstalled())

	contents, err := os.ReadFile(filepath.Join(layout.FirmwareMarkerPath(), "000.nca"))
	require.NoError(t, err)
	require.Equal(t, "content", string(contents))

	// Second run does nothing.
	report, err = acquisition.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.Extracted)
	require.Equal(t, artifact.OutcomeAlreadyValid, report.Outcome.Kind)
	require.Equal(t, int32(1), hits.Load())
}

// TestRun_DigestMismatch never extracts a corrupted archive.
func TestRun_DigestMismatch(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{"nand/system/Contents/registered/a": "a"})
	server, _ := firmwareServer(t, archive)

	acquisition, layout := newAcquisition(t, server, md5Hex([]byte("something else")))

	report, err := acquisition.Run(context.Background())
	require.ErrorIs(t, err, artifact.ErrDigestMismatch)
	require.False(t, report.Extracted)

	_, err = os.Stat(layout.FirmwareMarkerPath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_Unverified fetches directly when no digest is configured.
func TestRun_Unverified(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{"nand/system/Contents/registered/a": "a"})
	server, hits := firmwareServer(t, archive)

	acquisition, _ := newAcquisition(t, server, "")

	report, err := acquisition.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Extracted)
	require.Equal(t, int32(1), hits.Load())
}

// failingExtractor always fails.
type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, string) error {
	return errors.New("disk full")
}

// TestRun_ExtractFailure reports extraction errors as IO failures.
func TestRun_ExtractFailure(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{"x": "x"})
	server, _ := firmwareServer(t, archive)

	acquisition, _ := newAcquisition(t, server, md5Hex(archive), WithExtractor(failingExtractor{}))

	report, err := acquisition.Run(context.Background())
	require.ErrorIs(t, err, artifact.ErrIO)
	require.Equal(t, artifact.OutcomeIOFailure, report.Outcome.Kind)
}

// TestZipExtractor_RejectsTraversal guards against entries escaping the destination.
func TestZipExtractor_RejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archivePath, buildZip(t, map[string]string{"../../escape.txt": "x"}), 0o600))

	destination := filepath.Join(dir, "out")
	err := ZipExtractor{}.Extract(context.Background(), archivePath, destination)
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestZipExtractor_Canceled stops before writing anything.
func TestZipExtractor_Canceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "fw.zip")
	require.NoError(t, os.WriteFile(archivePath, buildZip(t, map[string]string{"a": "a"}), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ZipExtractor{}.Extract(ctx, archivePath, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, context.Canceled)
}

// TestIsInstalled_EmptyMarker requires the marker directory to have contents.
func TestIsInstalled_EmptyMarker(t *testing.T) {
	t.Parallel()

	server, _ := firmwareServer(t, nil)
	acquisition, layout := newAcquisition(t, server, "")

	require.NoError(t, os.MkdirAll(layout.FirmwareMarkerPath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layout.FirmwareRoot(), "fw.zip"), []byte("zip"), 0o600))
	require.False(t, acquisition.IsInstalled())

	require.NoError(t, os.WriteFile(filepath.Join(layout.FirmwareMarkerPath(), "a"), []byte("a"), 0o600))
	require.True(t, acquisition.IsInstalled())
}

// TestEnsureWithinRoot accepts nested targets and rejects siblings.
func TestEnsureWithinRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "firmware")

	require.NoError(t, ensureWithinRoot(root, root))
	require.NoError(t, ensureWithinRoot(root, filepath.Join(root, "nand", "a")))
	require.ErrorIs(t, ensureWithinRoot(root, root+"-other"), errIllegalPath)
	require.ErrorIs(t, ensureWithinRoot(root, filepath.Join(root, "..", "x")), errIllegalPath)
}
