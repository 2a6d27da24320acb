package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	records, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, records)
}

// TestFileRepository_PutLoad_Roundtrip ensures Put followed by Load returns equal records.
func TestFileRepository_PutLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "nested", "ledger.json")
	repo := NewFileRepository(file)

	keys, err := artifact.NewDescriptor("prod.keys", "https://x/prod.keys", "/tmp/keys/prod.keys", "4ed853d4a52e6b9b9e11954f155ecb8a", artifact.CategoryKeys)
	require.NoError(t, err)

	driver, err := artifact.NewDescriptor("turnip", "https://x/turnip.zip", "/tmp/gpu/turnip.zip", "dbdb8d8fe6d6a310be79ad93b7d038ec", artifact.CategoryGpuDriver)
	require.NoError(t, err)

	ts := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, NewRecord(keys, artifact.AlreadyValid(), ts)))
	require.NoError(t, repo.Put(ctx, NewRecord(driver, artifact.NetworkFailure(errors.New("refused")), ts)))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "prod.keys", got[0].ID)
	require.Equal(t, artifact.CategoryKeys, got[0].Category)
	require.Equal(t, artifact.OutcomeAlreadyValid, got[0].Kind)
	require.True(t, got[0].OK())
	require.Equal(t, ts, got[0].CheckedAt)

	require.Equal(t, "turnip", got[1].ID)
	require.Equal(t, artifact.OutcomeNetworkFailure, got[1].Kind)
	require.False(t, got[1].OK())
	require.Contains(t, got[1].Message, "refused")

	// Replacing an entry keeps one record per identifier.
	require.NoError(t, repo.Put(ctx, NewRecord(driver, artifact.Success(), ts)))

	got, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, artifact.OutcomeSuccess, got[1].Kind)

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_Corrupt reports a decode error for garbage.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(file, []byte("not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
