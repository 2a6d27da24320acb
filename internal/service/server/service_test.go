package server

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/lock"
	"github.com/oshokin/artifact-keeper/internal/logger"
	repo "github.com/oshokin/artifact-keeper/internal/repository/ledger"
	"github.com/oshokin/artifact-keeper/internal/service/provisioner"
)

var errTestLoad = errors.New("test load error")

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	mu sync.Mutex
	// records are returned from Load operations.
	records map[string]repo.Record
	// loadErr is the error to return from Load operations.
	loadErr error
}

// Load returns the stored records or loadErr.
func (m *memoryRepository) Load(context.Context) ([]repo.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}

	result := make([]repo.Record, 0, len(m.records))
	for _, r := range m.records {
		result = append(result, r)
	}

	return result, nil
}

// Put stores records by identifier.
func (m *memoryRepository) Put(_ context.Context, records ...repo.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records == nil {
		m.records = make(map[string]repo.Record)
	}

	for _, r := range records {
		m.records[r.ID] = r
	}

	return nil
}

// recordingPublisher counts publications and keeps the last one.
type recordingPublisher struct {
	mu    sync.Mutex
	calls int
	last  []repo.Record
}

func (p *recordingPublisher) Publish(records []repo.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	p.last = records
}

// countingStore succeeds and counts calls.
type countingStore struct {
	calls atomic.Int32
}

func (s *countingStore) Ensure(context.Context, artifact.Descriptor, ...fetcher.FetchOption) artifact.Outcome {
	s.calls.Add(1)

	return artifact.AlreadyValid()
}

// freeGuard always succeeds.
type freeGuard struct{}

func (freeGuard) Acquire(context.Context) error { return nil }
func (freeGuard) Release(context.Context)       {}

func testDescriptors(t *testing.T) []artifact.Descriptor {
	t.Helper()

	keys, err := artifact.NewDescriptor("prod.keys", "http://x/prod.keys", filepath.Join(t.TempDir(), "prod.keys"), "4ed853d4a52e6b9b9e11954f155ecb8a", artifact.CategoryKeys)
	require.NoError(t, err)

	driver, err := artifact.NewDescriptor("turnip", "http://x/turnip.zip", filepath.Join(t.TempDir(), "turnip.zip"), "dbdb8d8fe6d6a310be79ad93b7d038ec", artifact.CategoryGpuDriver)
	require.NoError(t, err)

	return []artifact.Descriptor{keys, driver}
}

// TestNewService_LoadsLedger asserts newService behavior on existing, missing, and error ledgers.
func TestNewService_LoadsLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Existing records are published immediately.
	existing := &memoryRepository{records: map[string]repo.Record{
		"prod.keys": {ID: "prod.keys", Category: artifact.CategoryKeys, Kind: artifact.OutcomeSuccess},
	}}
	publisher := new(recordingPublisher)

	_, err := newService(ctx, nil, testDescriptors(t), nil, existing, publisher, freeGuard{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, publisher.calls)
	require.Len(t, publisher.last, 1)

	// Not found keeps the default state.
	publisher = new(recordingPublisher)

	_, err = newService(ctx, nil, nil, nil, &memoryRepository{loadErr: repo.ErrNotFound}, publisher, freeGuard{}, time.Minute)
	require.NoError(t, err)
	require.Zero(t, publisher.calls)

	// Other error.
	s, err := newService(ctx, nil, nil, nil, &memoryRepository{loadErr: errTestLoad}, publisher, freeGuard{}, time.Minute)
	require.ErrorIs(t, err, errTestLoad)
	require.Nil(t, s)
}

// TestService_LoopRefreshesPeriodically verifies refreshes happen at start and on every tick.
func TestService_LoopRefreshesPeriodically(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var (
			store      = new(countingStore)
			repository = new(memoryRepository)
			publisher  = new(recordingPublisher)
			descs      = testDescriptors(t)
		)

		p := provisioner.New(store, provisioner.WithLedger(repository))

		s, err := newService(context.Background(), p, descs, nil, repository, publisher, freeGuard{}, time.Minute)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		go func() {
			s.loop(ctx)
			close(stopped)
		}()

		// Refreshes at 0, 1m and 2m.
		time.Sleep(150 * time.Second)
		synctest.Wait()

		require.Equal(t, int32(3*len(descs)), store.calls.Load())
		require.Equal(t, 3, publisher.calls)
		require.Len(t, publisher.last, len(descs))

		cancel()
		<-stopped
	})
}

// TestService_RefreshSkippedWhileHeld leaves artifacts alone when another process owns the root.
func TestService_RefreshSkippedWhileHeld(t *testing.T) {
	t.Parallel()

	var (
		store     = new(countingStore)
		publisher = new(recordingPublisher)
	)

	s, err := newService(context.Background(), provisioner.New(store), testDescriptors(t), nil,
		&memoryRepository{loadErr: repo.ErrNotFound}, publisher, heldGuard{}, time.Minute)
	require.NoError(t, err)

	s.refresh(context.Background())
	require.Zero(t, store.calls.Load())
	require.Zero(t, publisher.calls)
}

// heldGuard reports the storage root as busy.
type heldGuard struct{}

func (heldGuard) Acquire(context.Context) error { return lock.ErrHeld }
func (heldGuard) Release(context.Context)       {}

// TestService_RefreshFallsBackWithoutLedger publishes the fresh reports if the ledger is unreadable.
func TestService_RefreshFallsBackWithoutLedger(t *testing.T) {
	t.Parallel()

	var (
		store     = new(countingStore)
		publisher = new(recordingPublisher)
		descs     = testDescriptors(t)
	)

	repository := &memoryRepository{loadErr: repo.ErrNotFound}

	s, err := newService(context.Background(), provisioner.New(store), descs, nil, repository, publisher, freeGuard{}, time.Minute)
	require.NoError(t, err)

	s.refresh(context.Background())
	require.Equal(t, 1, publisher.calls)
	require.Len(t, publisher.last, len(descs))

	for _, record := range publisher.last {
		require.True(t, record.OK())
	}
}

// TestService_SkipsStaleRecords publishes only configured artifacts and firmware, so a failing
// record of a removed artifact cannot keep the storage root NOT_SERVING.
func TestService_SkipsStaleRecords(t *testing.T) {
	t.Parallel()

	var (
		store     = new(countingStore)
		publisher = new(recordingPublisher)
		descs     = testDescriptors(t)
	)

	firmware, err := artifact.NewDescriptor("firmware", "http://x/fw.zip",
		filepath.Join(t.TempDir(), "fw.zip"), "", artifact.CategoryFirmware)
	require.NoError(t, err)

	// old.keys was removed and turnip used to be listed under keys.
	failed := artifact.NetworkFailure(errTestLoad)
	repository := &memoryRepository{records: map[string]repo.Record{
		"old.keys": repo.NewRecord(mustDescriptor(t, "old.keys", artifact.CategoryKeys), failed, time.Now()),
		"turnip":   repo.NewRecord(mustDescriptor(t, "turnip", artifact.CategoryKeys), failed, time.Now()),
		"firmware": repo.NewRecord(firmware, artifact.Success(), time.Now()),
	}}

	s, err := newService(context.Background(), provisioner.New(store, provisioner.WithLedger(repository)),
		descs, []artifact.Descriptor{firmware}, repository, publisher, freeGuard{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, publisher.calls)
	require.Len(t, publisher.last, 1)
	require.Equal(t, "firmware", publisher.last[0].ID)

	s.refresh(context.Background())
	require.Equal(t, 2, publisher.calls)

	ids := make([]string, 0, len(publisher.last))
	for _, record := range publisher.last {
		require.True(t, record.OK(), record.ID)

		ids = append(ids, record.ID)
	}

	require.ElementsMatch(t, []string{"prod.keys", "turnip", "firmware"}, ids)
}

func mustDescriptor(t *testing.T, id string, category artifact.Category) artifact.Descriptor {
	t.Helper()

	d, err := artifact.NewDescriptor(id, "http://x/"+id, filepath.Join(t.TempDir(), id),
		"4ed853d4a52e6b9b9e11954f155ecb8a", category)
	require.NoError(t, err)

	return d
}

// TestResolveListenAddress covers override, port extraction and missing configuration.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("server.local:7000", "")
	require.NoError(t, err)
	require.Equal(t, ":7000", addr)

	addr, err = resolveListenAddress("server.local:7000", "127.0.0.1:9000")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}

// TestRefreshContext verifies the refresh level overrides the global one only when configured.
func TestRefreshContext(t *testing.T) {
	t.Parallel()

	quiet := logger.FromContext(refreshContext(context.Background(), "error")).Desugar().Core()
	require.False(t, quiet.Enabled(zapcore.WarnLevel))
	require.True(t, quiet.Enabled(zapcore.ErrorLevel))

	verbose := logger.FromContext(refreshContext(context.Background(), "debug")).Desugar().Core()
	require.True(t, verbose.Enabled(zapcore.DebugLevel))

	require.NotNil(t, logger.FromContext(refreshContext(context.Background(), "")))
}
