package storage

import (
	"context"
	"time"

	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
)

// Position is a point in the (updated_at, remote_id) order of records of one type.
type Position struct {
	Timestamp time.Time
	RemoteID  string
}

// RecordStorage persists the current version of business records and their tombstones.
type RecordStorage interface {
	entity.RecordWriter

	// ListRecordsAfter returns up to limit records (deleted included) strictly after pos,
	// ordered by updated_at then remote_id.
	ListRecordsAfter(ctx context.Context, tenantID, entityType string, pos Position, limit int) ([]*models.Record, error)

	// GetTombstone returns the latest tombstone of a record.
	// Returns ErrTombstoneNotFound if the record was never deleted
	GetTombstone(ctx context.Context, tenantID, entityType, remoteID string) (*models.Tombstone, error)
}
