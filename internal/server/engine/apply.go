package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

// change is one write to the central store through an entity handler.
type change struct {
	mapping *models.IdentityMapping
	// observed is the watermark the replica saw, nil for resolutions
	observed    *time.Time
	tenantID    string
	entityType  string
	localID     string
	contentHash string
	actor       string
	operation   models.Operation
	payload     models.Payload
}

// applyChange writes c through h and advances the identity mapping. It runs inside q's transaction.
// The record timestamp becomes the new watermark and always moves past the previous one, so a
// download cursor positioned on the old version still sees the new one.
func (e *Engine) applyChange(ctx context.Context, q storage.Queries, h entity.Handler, c change) (*models.IdentityMapping, error) {
	appliedAt := e.clock()
	if c.observed != nil {
		appliedAt = models.MaxTime(appliedAt, models.NormalizeTime(*c.observed))
	}

	remoteID := uuid.New().String()
	if c.mapping != nil {
		remoteID = c.mapping.RemoteID
		if !appliedAt.After(c.mapping.LastSynced) {
			appliedAt = c.mapping.LastSynced.Add(models.TimePrecision)
		}
	}

	rec := &models.Record{
		TenantID:    c.tenantID,
		EntityType:  c.entityType,
		RemoteID:    remoteID,
		LocalID:     c.localID,
		ContentHash: c.contentHash,
		UpdatedBy:   c.actor,
		UpdatedAt:   appliedAt,
		Payload:     c.payload,
	}

	if err := entity.Apply(ctx, h, q, c.operation, rec, c.actor); err != nil {
		return nil, err
	}

	m, err := q.UpsertMapping(ctx, &models.IdentityMapping{
		TenantID:    c.tenantID,
		EntityType:  c.entityType,
		LocalID:     c.localID,
		RemoteID:    remoteID,
		LastSynced:  appliedAt,
		ContentHash: c.contentHash,
		Status:      models.StatusSuccess,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update identity mapping: %w", err)
	}
	return m, nil
}
