package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/logger"
)

// Verifier is the digest capability the store depends on.
type Verifier interface {
	DigestOf(path string) (string, error)
	Check(path, expectedHex string) (bool, error)
}

// Store keeps local copies of artifacts valid.
type Store struct {
	// fetcher downloads missing or invalid artifacts.
	fetcher fetcher.Interface
	// verifier checks local copies against their expected digest.
	verifier Verifier
	// mismatchRetries is how many extra fetches follow a digest mismatch.
	mismatchRetries int
	// locks serializes Ensure calls per artifact identifier.
	locks *keyedMutex
}

// Option configures a Store.
type Option func(*Store)

// WithMismatchRetries allows up to n additional fetches after a digest mismatch.
func WithMismatchRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.mismatchRetries = n
		}
	}
}

// New creates a Store.
func New(f fetcher.Interface, verifier Verifier, opts ...Option) *Store {
	s := &Store{
		fetcher:  f,
		verifier: verifier,
		locks:    newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Ensure makes sure a valid copy of the artifact exists at its destination path.
//
// A present copy with the expected digest yields AlreadyValid without touching
// the network. A present but invalid copy is deleted before fetching. A fetched
// copy that fails verification is deleted and reported as DigestMismatch.
func (s *Store) Ensure(ctx context.Context, desc artifact.Descriptor, opts ...fetcher.FetchOption) artifact.Outcome {
	unlock := s.locks.Lock(desc.Identifier())
	defer unlock()

	ctx = logger.WithKV(ctx, "artifact", desc.Identifier())
	path := desc.DestinationPath()

	present, err := exists(path)
	if err != nil {
		return artifact.IOFailure(err)
	}

	if present {
		if !desc.Verified() {
			logger.Debug(ctx, "Artifact present, no digest configured")

			return artifact.AlreadyValid()
		}

		valid, checkErr := s.verifier.Check(path, desc.ExpectedDigest())
		if checkErr != nil {
			logger.WarnKV(ctx, "Unable to verify cached artifact", "path", path, "error", checkErr)
		}

		if valid {
			logger.Debug(ctx, "Artifact already valid")

			return artifact.AlreadyValid()
		}

		logger.InfoKV(ctx, "Cached artifact failed verification, removing", "path", path)

		if err = remove(path); err != nil {
			return artifact.IOFailure(err)
		}
	}

	return s.fetchAndVerify(ctx, desc, opts)
}

// fetchAndVerify fetches the artifact and verifies the result, re-fetching
// after a digest mismatch at most mismatchRetries times.
func (s *Store) fetchAndVerify(ctx context.Context, desc artifact.Descriptor, opts []fetcher.FetchOption) artifact.Outcome {
	path := desc.DestinationPath()

	for attempt := 0; ; attempt++ {
		logger.InfoKV(ctx, "Fetching artifact", "url", desc.SourceURL(), "path", path)

		outcome := s.fetcher.Fetch(ctx, desc.SourceURL(), path, opts...)
		if !outcome.OK() {
			return outcome
		}

		if !desc.Verified() {
			return outcome
		}

		outcome = s.verify(path, desc.ExpectedDigest())
		if outcome.Kind != artifact.OutcomeDigestMismatch {
			return outcome
		}

		logger.WarnKV(ctx, "Fetched artifact failed verification", "error", outcome.Err)

		if err := remove(path); err != nil {
			return artifact.IOFailure(err)
		}

		if attempt >= s.mismatchRetries {
			return outcome
		}
	}
}

// verify compares the digest of path with expected.
func (s *Store) verify(path, expected string) artifact.Outcome {
	actual, err := s.verifier.DigestOf(path)
	if err != nil {
		return artifact.IOFailure(err)
	}

	if !strings.EqualFold(actual, expected) {
		return artifact.DigestMismatch(expected, actual)
	}

	return artifact.Success()
}

// exists reports whether path exists.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// remove deletes path, ignoring a file that is already gone.
func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

// refMutex is a mutex with a count of goroutines holding or waiting for it.
type refMutex struct {
	sync.Mutex

	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()

	m, ok := k.locks[key]
	if !ok {
		m = new(refMutex)
		k.locks[key] = m
	}

	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--

		if m.refs == 0 {
			delete(k.locks, key)
		}

		k.mu.Unlock()
	}
}
