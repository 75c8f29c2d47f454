package storage

import (
	"context"
	"time"

	"github.com/iudanet/booksync/internal/models"
)

// ConflictStorage persists conflict records.
type ConflictStorage interface {
	// CreateConflict stores c unless a conflict with the same tenant and fingerprint exists.
	// It returns the stored record and whether it was created by this call.
	CreateConflict(ctx context.Context, c *models.ConflictRecord) (*models.ConflictRecord, bool, error)

	// GetConflict returns a conflict of the tenant.
	// Returns ErrConflictNotFound if it does not exist
	GetConflict(ctx context.Context, tenantID, conflictID string) (*models.ConflictRecord, error)

	// ListConflicts returns conflicts of the tenant in a status, oldest first.
	// An empty entityType matches every type.
	ListConflicts(ctx context.Context, tenantID, entityType string, status models.ConflictStatus) ([]*models.ConflictRecord, error)

	// ResolveConflict moves a pending conflict to resolved.
	// Returns ErrConflictAlreadyResolved when it is no longer pending and ErrConflictNotFound when absent
	ResolveConflict(ctx context.Context, tenantID, conflictID string, strategy models.Strategy, resolution *models.Payload, resolvedBy string, at time.Time) error

	// CountPendingConflicts counts pending conflicts of a tenant, or of all tenants when tenantID is empty.
	CountPendingConflicts(ctx context.Context, tenantID string) (int, error)
}
