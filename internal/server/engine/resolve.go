package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/booksync/internal/crypto"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

// ResolveRequest resolves one pending conflict.
type ResolveRequest struct {
	ResolvedData *models.Payload
	TenantID     string
	ConflictID   string
	Actor        string
	Strategy     models.Strategy
}

// ResolveResult is the resolved conflict and the entity state it produced.
type ResolveResult struct {
	Conflict *models.ConflictRecord
	Entity   models.SyncEntity
}

// ResolveConflict applies a strategy to a pending conflict. The conflict leaves the pending state
// at most once; a lost race returns storage.ErrConflictAlreadyResolved. Strategy failures
// (*conflict.MergeError, conflict.ErrManualResolutionRequired) leave the conflict pending.
func (e *Engine) ResolveConflict(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	c, err := e.store.GetConflict(ctx, req.TenantID, req.ConflictID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.ConflictPending {
		return nil, storage.ErrConflictAlreadyResolved
	}

	resolution, err := e.resolver.Resolve(c, req.Strategy, req.ResolvedData)
	if err != nil {
		return nil, err
	}

	h, err := e.registry.Lookup(c.EntityType)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	var mapping *models.IdentityMapping

	err = e.store.WithTx(ctx, func(q storage.Queries) error {
		// условное обновление: только один resolve переводит конфликт в resolved
		if err := q.ResolveConflict(ctx, c.TenantID, c.ConflictID, resolution.Strategy, &resolution.Payload, req.Actor, now); err != nil {
			return err
		}

		m, err := q.GetMapping(ctx, c.TenantID, c.EntityType, c.EntityID)
		if err != nil && !errors.Is(err, storage.ErrMappingNotFound) {
			return err
		}

		if resolution.Operation == "" {
			if m == nil {
				return nil
			}
			m.Status = models.StatusSuccess
			mapping, err = q.UpsertMapping(ctx, m)
			return err
		}

		mapping, err = e.applyChange(ctx, q, h, change{
			mapping:    m,
			tenantID:   c.TenantID,
			entityType: c.EntityType,
			localID:    c.EntityID,
			contentHash: crypto.ContentHash(c.EntityType, c.EntityID, string(resolution.Operation),
				resolution.Payload.SchemaVersion, resolution.Payload.Data),
			actor:     req.Actor,
			operation: resolution.Operation,
			payload:   resolution.Payload,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ent := models.SyncEntity{
		TenantID:   c.TenantID,
		EntityType: c.EntityType,
		LocalID:    c.EntityID,
		RemoteID:   c.RemoteID,
		Operation:  resolution.Operation,
		Payload:    resolution.Payload,
		Status:     models.StatusSuccess,
	}
	if mapping != nil {
		ent.RemoteID = mapping.RemoteID
		ent.ContentHash = mapping.ContentHash
		ent.RemoteTimestamp = &mapping.LastSynced
	}

	e.markResolved(ctx, &ent)
	e.appendHistory(ctx, &models.HistoryEntry{
		TenantID:   c.TenantID,
		Operation:  models.HistoryResolve,
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Outcome:    models.OutcomeSuccess,
		Actor:      req.Actor,
		Details:    fmt.Sprintf("conflict=%s strategy=%s", c.ConflictID, resolution.Strategy),
	})

	resolved, err := e.store.GetConflict(ctx, c.TenantID, c.ConflictID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("conflict resolved",
		slog.String("conflict_id", c.ConflictID),
		slog.String("entity_type", c.EntityType),
		slog.String("strategy", string(resolution.Strategy)),
	)

	return &ResolveResult{Conflict: resolved, Entity: ent}, nil
}

// markResolved moves the status ledger out of the conflict state.
func (e *Engine) markResolved(ctx context.Context, ent *models.SyncEntity) {
	current, err := e.store.GetStatus(ctx, ent.TenantID, ent.EntityType, ent.LocalID)
	if err == nil && current.Status != models.StatusSuccess && !models.CanTransition(current.Status, models.StatusSuccess) {
		e.logger.Warn("status ledger not in conflict state",
			slog.String("entity_id", ent.LocalID),
			slog.String("status", string(current.Status)),
		)
		return
	}
	e.recordAttempt(ctx, ent, models.StatusSuccess, "")
}

// ListConflicts returns pending conflicts of a tenant, optionally of one entity type.
func (e *Engine) ListConflicts(ctx context.Context, tenantID, entityType string) ([]*models.ConflictRecord, error) {
	conflicts, err := e.store.ListConflicts(ctx, tenantID, entityType, models.ConflictPending)
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []*models.ConflictRecord{}
	}
	return conflicts, nil
}
