package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestSaveAndGetCursor(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// Изначально курсора нет
	cursor, err := store.GetCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, store.SaveCursor(ctx, "2026-03-01T10:00:00Z|Account|r-1"))

	cursor, err = store.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T10:00:00Z|Account|r-1", cursor)
}

func TestSaveAndGetLastSyncTime(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// Если синхронизации не было, нулевое время
	ts, err := store.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	expected := time.Date(2026, 3, 1, 12, 30, 15, 250_000_000, time.UTC)
	require.NoError(t, store.SaveLastSyncTime(ctx, expected))

	got, err := store.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, expected.Equal(got))
}

func TestMetadata_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// Удаляем bucket metadata напрямую
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetCursor(ctx)
	assert.Error(t, err)
	assert.Error(t, store.SaveCursor(ctx, "x"))
	_, err = store.GetLastSyncTime(ctx)
	assert.Error(t, err)
	assert.Error(t, store.SaveLastSyncTime(ctx, time.Now()))
}
