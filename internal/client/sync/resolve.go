package sync

import (
	"context"
	"fmt"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/pkg/api"
)

// Conflicts lists pending server-side conflicts of the tenant.
func (s *Service) Conflicts(ctx context.Context, entityType string) ([]*models.ConflictRecord, error) {
	resp, err := s.api.Conflicts(ctx, entityType)
	if err != nil {
		return nil, err
	}
	return resp.Conflicts, nil
}

// Resolve resolves a conflict on the server and applies the winning version locally.
// resolved is only used with the manual strategy.
func (s *Service) Resolve(ctx context.Context, conflictID string, strategy models.Strategy, resolved *models.Payload) (*api.ResolveResponse, error) {
	resp, err := s.api.Resolve(ctx, api.ResolveRequest{
		ConflictID:   conflictID,
		TenantID:     s.cfg.TenantID,
		Strategy:     strategy,
		ResolvedData: resolved,
	})
	if err != nil {
		return nil, err
	}

	ent := resp.Entity
	unsynced, err := s.store.HasUnsyncedChange(ctx, ent.EntityType, ent.LocalID)
	if err != nil {
		return resp, err
	}
	if unsynced {
		// новая локальная правка остается, меняется только база
		err = s.confirm(ctx, &ent)
	} else {
		err = s.applyServerEntity(ctx, &ent)
	}
	if err != nil {
		return resp, fmt.Errorf("failed to apply resolution: %w", err)
	}

	// конфликтующие записи журнала закрываются разрешением
	conflicted, err := s.store.ChangesByStatus(ctx, models.StatusConflict)
	if err != nil {
		return resp, err
	}
	var updates []storage.ChangeUpdate
	for _, c := range conflicted {
		if c.EntityType == ent.EntityType && c.LocalID == ent.LocalID {
			updates = append(updates, storage.ChangeUpdate{Seq: c.Seq, Status: models.StatusSuccess})
		}
	}
	if err := s.store.UpdateChanges(ctx, updates); err != nil {
		return resp, err
	}

	s.logger.Info("Conflict resolved",
		"conflict_id", conflictID,
		"strategy", strategy,
		"entity_type", ent.EntityType,
		"local_id", ent.LocalID)
	return resp, nil
}
