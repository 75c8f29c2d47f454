// Package storage defines the durable state a replica keeps between sync runs.
package storage

import (
	"context"
	"time"

	"github.com/iudanet/booksync/internal/models"
)

// Change is one local mutation recorded in the change ledger.
type Change struct {
	LocalTimestamp  time.Time         `json:"local_timestamp"`
	RemoteTimestamp *time.Time        `json:"remote_timestamp,omitempty"`
	BasePayload     *models.Payload   `json:"base_payload,omitempty"`
	EntityType      string            `json:"entity_type"`
	LocalID         string            `json:"local_id"`
	RemoteID        string            `json:"remote_id,omitempty"`
	PackageID       string            `json:"package_id,omitempty"`
	Error           string            `json:"error,omitempty"`
	Operation       models.Operation  `json:"operation"`
	Status          models.SyncStatus `json:"status"`
	Payload         models.Payload    `json:"payload"`
	Seq             uint64            `json:"seq"`
}

// ChangeUpdate is the new state of one ledger entry.
type ChangeUpdate struct {
	PackageID string
	Error     string
	Status    models.SyncStatus
	Seq       uint64
}

// LedgerStorage is the ordered, durable log of local changes.
type LedgerStorage interface {
	// RecordChange appends a change and returns its sequence number. Updates and deletes pick up
	// remote_id, remote_timestamp and the base payload from the identity cache and replica.
	RecordChange(ctx context.Context, change *Change) (uint64, error)

	// PendingChanges returns up to limit pending entries in ledger order. limit <= 0 means all.
	PendingChanges(ctx context.Context, limit int) ([]*Change, error)

	// ChangesByStatus returns entries in the given status in ledger order.
	ChangesByStatus(ctx context.Context, status models.SyncStatus) ([]*Change, error)

	// GetChange returns a single entry.
	GetChange(ctx context.Context, seq uint64) (*Change, error)

	// UpdateChanges applies status updates atomically.
	UpdateChanges(ctx context.Context, updates []ChangeUpdate) error

	// CountChanges returns the number of ledger entries per status.
	CountChanges(ctx context.Context) (map[models.SyncStatus]int, error)

	// HasUnsyncedChange reports whether the entity has a pending or in-flight change.
	HasUnsyncedChange(ctx context.Context, entityType, localID string) (bool, error)
}
