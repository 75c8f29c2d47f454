package storage

import (
	"context"

	"github.com/iudanet/booksync/internal/models"
)

// StatusCounts holds the number of entities per entity type and status.
type StatusCounts map[string]map[models.SyncStatus]int

// Total returns the number of entities in status across types.
func (c StatusCounts) Total(status models.SyncStatus) int {
	n := 0
	for _, byStatus := range c {
		n += byStatus[status]
	}
	return n
}

// StatusStorage persists the per-entity retry ledger.
type StatusStorage interface {
	// RecordAttempt stores the outcome of one attempt, incrementing the attempt counter.
	// LastSuccess is only moved on successful attempts.
	RecordAttempt(ctx context.Context, rec *models.SyncStatusRecord) error

	// GetStatus returns ErrStatusNotFound for entities never attempted.
	GetStatus(ctx context.Context, tenantID, entityType, entityID string) (*models.SyncStatusRecord, error)

	// CountStatuses aggregates status records of a tenant, or of all tenants when tenantID is empty.
	CountStatuses(ctx context.Context, tenantID string) (StatusCounts, error)
}
