package storage

import (
	"context"

	"github.com/iudanet/booksync/internal/models"
)

// MappingStorage persists identity mappings between replica local ids and central remote ids.
type MappingStorage interface {
	// GetMapping returns the mapping of a local id.
	// Returns ErrMappingNotFound if the entity was never synced
	GetMapping(ctx context.Context, tenantID, entityType, localID string) (*models.IdentityMapping, error)

	// UpsertMapping creates the mapping or moves an existing one forward in a single statement.
	// A new mapping gets m.RemoteID (a fresh UUID when empty); an existing one keeps its remote id
	// and its last_synced becomes the later of the stored and the given value.
	UpsertMapping(ctx context.Context, m *models.IdentityMapping) (*models.IdentityMapping, error)
}
