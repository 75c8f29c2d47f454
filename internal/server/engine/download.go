package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/booksync/internal/codec"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
	"github.com/iudanet/booksync/internal/syncerr"
)

// DownloadRequest asks for central changes after a cursor.
type DownloadRequest struct {
	TenantID       string
	UserID         string
	Cursor         string
	EntityTypes    []string
	MaxEntities    int
	IncludeDeleted bool
}

// DownloadResult is one page of central changes.
type DownloadResult struct {
	Package    *models.SyncPackage
	NextCursor string
	HasMore    bool
}

// ProcessDownload returns records of the requested types changed after the cursor, in
// (updated_at, remote_id) order per type and the given type order, up to MaxEntities.
// Deleted records are delivered as delete operations carrying their last state.
func (e *Engine) ProcessDownload(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	types := req.EntityTypes
	if len(types) == 0 {
		types = models.SupportedEntityTypes
	}
	for _, t := range types {
		if _, err := e.registry.Lookup(t); err != nil {
			return nil, syncerr.NewValidationError(fmt.Sprintf("unknown entity type %q", t))
		}
	}

	limit := req.MaxEntities
	if limit <= 0 || limit > e.maxDownload {
		limit = e.maxDownload
	}

	var (
		entities []models.SyncEntity
		returned int
	)
	for _, entityType := range types {
		budget := limit - returned
		if budget <= 0 {
			break
		}

		records, err := e.store.ListRecordsAfter(ctx, req.TenantID, entityType, cursor[entityType], budget)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s records: %w", entityType, err)
		}

		for _, rec := range records {
			// курсор двигается и для пропущенных удаленных записей
			cursor[entityType] = positionAt(rec.UpdatedAt, rec.RemoteID)
			returned++

			if rec.Deleted && !req.IncludeDeleted {
				continue
			}
			ent, err := e.toSyncEntity(ctx, rec)
			if err != nil {
				return nil, err
			}
			entities = append(entities, ent)
		}
	}

	pkg := codec.Build(req.TenantID, req.UserID, entities, e.clock())

	if len(entities) > 0 {
		e.appendHistory(ctx, &models.HistoryEntry{
			TenantID:  req.TenantID,
			Operation: models.HistoryDownload,
			EntityID:  pkg.PackageID,
			Outcome:   models.OutcomeSuccess,
			Actor:     req.UserID,
			Details:   fmt.Sprintf("entities=%d", len(entities)),
		})
	}

	e.logger.Debug("download served",
		slog.String("tenant_id", req.TenantID),
		slog.Int("entities", len(entities)),
		slog.Int("scanned", returned),
	)

	return &DownloadResult{
		Package:    pkg,
		HasMore:    returned >= limit,
		NextCursor: cursor.Encode(),
	}, nil
}

// toSyncEntity materializes a central record as a change. Live records are sent as updates,
// which replicas apply as upserts.
func (e *Engine) toSyncEntity(ctx context.Context, rec *models.Record) (models.SyncEntity, error) {
	updatedAt := rec.UpdatedAt
	ent := models.SyncEntity{
		LocalID:         rec.LocalID,
		RemoteID:        rec.RemoteID,
		EntityType:      rec.EntityType,
		TenantID:        rec.TenantID,
		ContentHash:     rec.ContentHash,
		Operation:       models.OperationUpdate,
		Status:          models.StatusSuccess,
		LocalTimestamp:  updatedAt,
		RemoteTimestamp: &updatedAt,
		Payload:         rec.Payload,
	}
	if !rec.Deleted {
		return ent, nil
	}

	ent.Operation = models.OperationDelete
	ts, err := e.store.GetTombstone(ctx, rec.TenantID, rec.EntityType, rec.RemoteID)
	if err != nil {
		if errors.Is(err, storage.ErrTombstoneNotFound) {
			return ent, nil
		}
		return models.SyncEntity{}, fmt.Errorf("failed to load tombstone: %w", err)
	}
	if !ts.LastPayload.IsEmpty() {
		ent.Payload = ts.LastPayload
	}
	return ent, nil
}
