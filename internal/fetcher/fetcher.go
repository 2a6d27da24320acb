package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/progress"
	"github.com/oshokin/artifact-keeper/internal/version"
)

const (
	// PartSuffix is appended to the destination path while a fetch is in flight.
	PartSuffix = ".part"

	// DefaultDirMode is used for storage directories created on demand.
	DefaultDirMode os.FileMode = 0o755

	// DefaultFileMode is used for fetched artifacts.
	DefaultFileMode os.FileMode = 0o644

	// bufferSize is the chunk size for copying response bodies.
	bufferSize = 32 * 1024
)

var (
	errBadHTTPStatus   = errors.New("unexpected http status")
	errTruncatedStream = errors.New("stream truncated")
)

// Interface is implemented by Fetcher and by decorators such as Retrying.
type Interface interface {
	Fetch(ctx context.Context, url, destinationPath string, opts ...FetchOption) artifact.Outcome
}

// Fetcher downloads a URL into a local file with a single attempt.
type Fetcher struct {
	// client performs the HTTP requests; it is shared and owned by the caller.
	client HTTPClient
	// userAgent is sent with every request.
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if userAgent != "" {
			f.userAgent = userAgent
		}
	}
}

// FetchOption configures a single Fetch call.
type FetchOption func(*fetchOptions)

// fetchOptions holds per-call settings.
type fetchOptions struct {
	// observer receives percentage progress when the content length is known.
	observer progress.Observer
}

// WithProgress reports percentage progress of the call to observer.
func WithProgress(observer progress.Observer) FetchOption {
	return func(o *fetchOptions) {
		o.observer = observer
	}
}

func applyFetchOptions(opts []FetchOption) *fetchOptions {
	options := new(fetchOptions)
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// New creates a Fetcher backed by the provided HTTP client.
func New(client HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		userAgent: "artifact-keeper/" + version.Short(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch streams url into destinationPath, overwriting existing content only on success.
func (f *Fetcher) Fetch(ctx context.Context, url, destinationPath string, opts ...FetchOption) artifact.Outcome {
	options := applyFetchOptions(opts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return artifact.NetworkFailure(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)

	response, err := f.client.Do(req)
	if err != nil {
		return artifact.NetworkFailure(fmt.Errorf("get %s: %w", url, err))
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return artifact.NetworkFailure(fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus))
	}

	if err = os.MkdirAll(filepath.Dir(destinationPath), DefaultDirMode); err != nil {
		return artifact.IOFailure(fmt.Errorf("create directory: %w", err))
	}

	partPath := destinationPath + PartSuffix

	outcome := f.writePart(ctx, response, partPath, options)
	if !outcome.OK() {
		if removeErr := os.Remove(partPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove partial file", "path", partPath, "error", removeErr)
		}

		return outcome
	}

	if err = replaceFile(partPath, destinationPath); err != nil {
		_ = os.Remove(partPath)

		return artifact.IOFailure(fmt.Errorf("finalize %s: %w", destinationPath, err))
	}

	return artifact.Success()
}

// writePart copies the response body into partPath and flushes it to disk.
func (f *Fetcher) writePart(
	ctx context.Context,
	response *http.Response,
	partPath string,
	options *fetchOptions,
) artifact.Outcome {
	file, err := os.OpenFile(filepath.Clean(partPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, DefaultFileMode)
	if err != nil {
		return artifact.IOFailure(fmt.Errorf("create %s: %w", partPath, err))
	}

	tracker := progress.NewTracker(options.observer, response.ContentLength)

	outcome := copyBody(ctx, file, response.Body, tracker)
	if !outcome.OK() {
		_ = file.Close()

		return outcome
	}

	if response.ContentLength >= 0 && tracker.Done() != response.ContentLength {
		_ = file.Close()

		return artifact.NetworkFailure(fmt.Errorf("received %d of %d bytes: %w",
			tracker.Done(), response.ContentLength, errTruncatedStream))
	}

	if err = file.Sync(); err != nil {
		_ = file.Close()

		return artifact.IOFailure(fmt.Errorf("sync %s: %w", partPath, err))
	}

	if err = file.Close(); err != nil {
		return artifact.IOFailure(fmt.Errorf("close %s: %w", partPath, err))
	}

	tracker.Complete()

	return artifact.Success()
}

// copyBody copies src into dst chunk by chunk, separating read (network)
// failures from write (local I/O) failures.
func copyBody(ctx context.Context, dst io.Writer, src io.Reader, tracker *progress.Tracker) artifact.Outcome {
	buffer := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return artifact.NetworkFailure(err)
		}

		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, err := dst.Write(buffer[:n]); err != nil {
				return artifact.IOFailure(fmt.Errorf("write: %w", err))
			}

			tracker.Add(int64(n))
		}

		if errors.Is(readErr, io.EOF) {
			return artifact.Success()
		}

		if readErr != nil {
			return artifact.NetworkFailure(fmt.Errorf("read body: %w", readErr))
		}
	}
}

// replaceFile moves src over dst. Some platforms refuse to rename over an
// existing file, so the destination is removed and the rename retried.
func replaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return os.Rename(src, dst)
}
