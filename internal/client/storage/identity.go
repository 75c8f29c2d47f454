package storage

import (
	"context"
	"time"

	"github.com/iudanet/booksync/internal/models"
)

// Identity caches the central store's view of a local entity.
type Identity struct {
	LastSynced  time.Time `json:"last_synced"`
	EntityType  string    `json:"entity_type"`
	LocalID     string    `json:"local_id"`
	RemoteID    string    `json:"remote_id"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// Tombstone is a local delete awaiting acknowledgement by the central store.
type Tombstone struct {
	DeletedAt   time.Time      `json:"deleted_at"`
	EntityType  string         `json:"entity_type"`
	LocalID     string         `json:"local_id"`
	RemoteID    string         `json:"remote_id,omitempty"`
	LastPayload models.Payload `json:"last_payload"`
	Synced      bool           `json:"synced"`
}

// ReplicaRecord is the local copy of a business record.
type ReplicaRecord struct {
	UpdatedAt  time.Time `json:"updated_at"`
	EntityType string    `json:"entity_type"`
	LocalID    string    `json:"local_id"`
	RemoteID   string    `json:"remote_id,omitempty"`
	// SyncedPayload is the last state confirmed by the central store, the base of the next edit.
	SyncedPayload *models.Payload `json:"synced_payload,omitempty"`
	Payload       models.Payload  `json:"payload"`
	Deleted       bool            `json:"deleted"`
}

// IdentityStorage caches remote ids and watermarks.
type IdentityStorage interface {
	GetIdentity(ctx context.Context, entityType, localID string) (*Identity, error)
	// PutIdentity stores id. RemoteID is kept once assigned and LastSynced never moves back.
	PutIdentity(ctx context.Context, id *Identity) error
}

// TombstoneStorage keeps local deletes until they are acknowledged.
type TombstoneStorage interface {
	ListTombstones(ctx context.Context, unsyncedOnly bool) ([]*Tombstone, error)
	MarkTombstoneSynced(ctx context.Context, entityType, localID string) error
}

// ReplicaStorage is the local copy of business records.
type ReplicaStorage interface {
	GetRecord(ctx context.Context, entityType, localID string) (*ReplicaRecord, error)
	PutRecord(ctx context.Context, rec *ReplicaRecord) error
	ListRecords(ctx context.Context, entityType string, includeDeleted bool) ([]*ReplicaRecord, error)
}

// CursorStorage persists the download cursor and the time of the last full sync.
type CursorStorage interface {
	GetCursor(ctx context.Context) (string, error)
	SaveCursor(ctx context.Context, cursor string) error
	// GetLastSyncTime returns the zero time if no sync completed yet.
	GetLastSyncTime(ctx context.Context) (time.Time, error)
	SaveLastSyncTime(ctx context.Context, t time.Time) error
}

// Store is everything the sync service needs from local storage.
type Store interface {
	LedgerStorage
	QueueStorage
	IdentityStorage
	TombstoneStorage
	ReplicaStorage
	CursorStorage
}
