package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/models"
)

func TestIdentity_RemoteIDAssignedOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	_, err := store.GetIdentity(ctx, models.EntityTypeInvoice, "i-1")
	assert.ErrorIs(t, err, storage.ErrIdentityNotFound)

	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutIdentity(ctx, &storage.Identity{
		EntityType: models.EntityTypeInvoice, LocalID: "i-1", RemoteID: "r-1", LastSynced: t1, ContentHash: "h1",
	}))
	require.NoError(t, store.PutIdentity(ctx, &storage.Identity{
		EntityType: models.EntityTypeInvoice, LocalID: "i-1", RemoteID: "r-other", LastSynced: t1.Add(time.Hour), ContentHash: "h2",
	}))

	ident, err := store.GetIdentity(ctx, models.EntityTypeInvoice, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", ident.RemoteID)
	assert.True(t, t1.Add(time.Hour).Equal(ident.LastSynced))
	assert.Equal(t, "h2", ident.ContentHash)
}

func TestIdentity_WatermarkNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutIdentity(ctx, &storage.Identity{
		EntityType: models.EntityTypeBill, LocalID: "b-1", RemoteID: "r-1", LastSynced: t1, ContentHash: "new",
	}))
	require.NoError(t, store.PutIdentity(ctx, &storage.Identity{
		EntityType: models.EntityTypeBill, LocalID: "b-1", LastSynced: t1.Add(-time.Hour), ContentHash: "old",
	}))

	ident, err := store.GetIdentity(ctx, models.EntityTypeBill, "b-1")
	require.NoError(t, err)
	assert.True(t, t1.Equal(ident.LastSynced))
	assert.Equal(t, "new", ident.ContentHash)
	assert.Equal(t, "r-1", ident.RemoteID)
}

func TestReplica_ListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	for _, rec := range []*storage.ReplicaRecord{
		{EntityType: models.EntityTypeCustomer, LocalID: "c-2", Payload: payload(`{}`)},
		{EntityType: models.EntityTypeAccount, LocalID: "a-1", Payload: payload(`{}`)},
		{EntityType: models.EntityTypeCustomer, LocalID: "c-1", Payload: payload(`{}`)},
		{EntityType: models.EntityTypeCustomer, LocalID: "c-3", Payload: payload(`{}`), Deleted: true},
	} {
		require.NoError(t, store.PutRecord(ctx, rec))
	}

	all, err := store.ListRecords(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-1", all[0].LocalID)
	assert.Equal(t, "c-1", all[1].LocalID)
	assert.Equal(t, "c-2", all[2].LocalID)

	customers, err := store.ListRecords(ctx, models.EntityTypeCustomer, true)
	require.NoError(t, err)
	assert.Len(t, customers, 3)

	_, err = store.GetRecord(ctx, models.EntityTypeCustomer, "zzz")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}
