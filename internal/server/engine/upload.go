package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/booksync/internal/codec"
	"github.com/iudanet/booksync/internal/conflict"
	"github.com/iudanet/booksync/internal/crypto"
	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
	"github.com/iudanet/booksync/internal/syncerr"
)

// ErrIdentityCollision is reported for a create whose identity already maps to different content.
var ErrIdentityCollision = errors.New("entity identity already exists with different content")

// UploadOptions tune a single upload.
type UploadOptions struct {
	// ForceOverwrite applies conflicting entities as if the local side won.
	ForceOverwrite bool
}

// ProcessUpload validates pkg and applies its entities one by one. A validation failure rejects the
// whole package and is returned as the error together with a result carrying zero counts. Entity
// failures never abort the package; they are counted and reported in the result.
func (e *Engine) ProcessUpload(ctx context.Context, pkg *models.SyncPackage, actor string, opts UploadOptions) (*models.UploadResult, error) {
	result := &models.UploadResult{
		SyncID:    uuid.New().String(),
		Errors:    []models.SyncError{},
		Conflicts: []models.ConflictRecord{},
		Outcomes:  []models.EntityOutcome{},
	}
	if pkg != nil {
		result.PackageID = pkg.PackageID
	}

	if err := codec.Validate(pkg); err != nil {
		result.Errors = append(result.Errors, syncerr.ToSyncError(err))
		e.logger.Warn("package rejected", slog.String("package_id", result.PackageID), slog.String("error", err.Error()))
		if pkg != nil {
			e.appendHistory(ctx, &models.HistoryEntry{
				TenantID:    pkg.TenantID,
				Operation:   models.HistoryUpload,
				EntityTypes: packageTypes(pkg),
				EntityID:    pkg.PackageID,
				Outcome:     models.OutcomeFailed,
				Actor:       actor,
				Details:     err.Error(),
			})
		}
		return result, err
	}

	received := e.clock()
	for _, ent := range pkg.Entities() {
		// отмена проверяется между сущностями, уже примененные остаются
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		ent := transform(ent, pkg.TenantID, received)
		result.Processed++

		outcome, c, err := e.processEntity(ctx, &ent, actor, opts)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, syncerr.ToSyncError(err))
			result.Outcomes = append(result.Outcomes, models.EntityOutcome{
				EntityType: ent.EntityType,
				LocalID:    ent.LocalID,
				RemoteID:   ent.RemoteID,
				Status:     models.StatusFailed,
			})
			e.recordAttempt(ctx, &ent, models.StatusFailed, err.Error())
			continue
		}

		switch outcome.Status {
		case models.StatusConflict:
			result.Conflicted++
			result.Conflicts = append(result.Conflicts, *c)
		case models.StatusSkipped:
			result.Skipped++
		default:
			result.Successful++
		}
		result.Outcomes = append(result.Outcomes, *outcome)
		e.recordAttempt(ctx, &ent, outcome.Status, "")
	}

	result.Success = result.Failed == 0

	e.logger.Info("package processed",
		slog.String("package_id", pkg.PackageID),
		slog.String("tenant_id", pkg.TenantID),
		slog.Int("processed", result.Processed),
		slog.Int("success", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Int("conflicts", result.Conflicted),
		slog.Bool("cancelled", result.Cancelled),
	)

	e.appendHistory(ctx, &models.HistoryEntry{
		TenantID:    pkg.TenantID,
		Operation:   models.HistoryUpload,
		EntityTypes: packageTypes(pkg),
		EntityID:    pkg.PackageID,
		Outcome:     uploadOutcome(result),
		Actor:       actor,
		Details:     uploadDetails(pkg, result),
	})

	return result, nil
}

// transform stamps server-side fields on an entity taken from a validated package.
func transform(ent models.SyncEntity, tenantID string, received time.Time) models.SyncEntity {
	ent.TenantID = tenantID
	ent.ReceivedAt = received
	ent.Status = models.StatusInProgress
	ent.LocalTimestamp = models.NormalizeTime(ent.LocalTimestamp)
	if ent.RemoteTimestamp != nil {
		ts := models.NormalizeTime(*ent.RemoteTimestamp)
		ent.RemoteTimestamp = &ts
	}
	ent.ContentHash = crypto.ContentHash(ent.EntityType, ent.LocalID, string(ent.Operation), ent.Payload.SchemaVersion, ent.Payload.Data)
	return ent
}

// processEntity runs detection and apply for one entity in its own transaction.
func (e *Engine) processEntity(ctx context.Context, ent *models.SyncEntity, actor string, opts UploadOptions) (*models.EntityOutcome, *models.ConflictRecord, error) {
	fail := func(err error, invalid bool) error {
		return &syncerr.ProcessingError{
			Err:        err,
			EntityType: ent.EntityType,
			EntityID:   ent.LocalID,
			Invalid:    invalid,
		}
	}

	h, err := e.registry.Lookup(ent.EntityType)
	if err != nil {
		return nil, nil, fail(err, true)
	}
	payload, err := h.Serialize(ent.Payload, ent.Operation)
	if err != nil {
		return nil, nil, fail(err, true)
	}

	outcome := &models.EntityOutcome{
		EntityType: ent.EntityType,
		LocalID:    ent.LocalID,
	}
	var created *models.ConflictRecord

	err = e.store.WithTx(ctx, func(q storage.Queries) error {
		m, err := q.GetMapping(ctx, ent.TenantID, ent.EntityType, ent.LocalID)
		if err != nil && !errors.Is(err, storage.ErrMappingNotFound) {
			return err
		}

		verdict := conflict.Detect(ent, m)
		if verdict == conflict.VerdictConflict && opts.ForceOverwrite {
			verdict = conflict.VerdictApply
		}

		switch verdict {
		case conflict.VerdictDuplicate:
			// повторная доставка: подтверждаем без записи
			touched, err := q.UpsertMapping(ctx, m)
			if err != nil {
				return err
			}
			outcome.Status = models.StatusSuccess
			outcome.RemoteID = touched.RemoteID
			outcome.LastSynced = &touched.LastSynced
			return nil

		case conflict.VerdictCollision:
			return fail(ErrIdentityCollision, true)

		case conflict.VerdictConflict:
			remote, err := q.GetRecord(ctx, ent.TenantID, ent.EntityType, m.RemoteID)
			if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
				return err
			}
			c := conflict.NewRecord(ent, remote, e.resolver.StrategyFor(ent.EntityType), h)
			if c.RemoteID == "" {
				c.RemoteID = m.RemoteID
			}
			stored, _, err := q.CreateConflict(ctx, c)
			if err != nil {
				return err
			}

			outcome.RemoteID = m.RemoteID
			outcome.ConflictID = stored.ConflictID
			// этот же конфликт уже разрешен ранее
			if stored.Status == models.ConflictResolved {
				outcome.Status = models.StatusSkipped
				return nil
			}
			outcome.Status = models.StatusConflict
			created = stored
			return nil

		default:
			applied, err := e.applyChange(ctx, q, h, change{
				mapping:     m,
				observed:    ent.RemoteTimestamp,
				tenantID:    ent.TenantID,
				entityType:  ent.EntityType,
				localID:     ent.LocalID,
				contentHash: ent.ContentHash,
				actor:       actor,
				operation:   ent.Operation,
				payload:     payload,
			})
			if err != nil {
				if errors.Is(err, entity.ErrRecordNotFound) || errors.Is(err, entity.ErrRecordDeleted) {
					return fail(err, false)
				}
				return err
			}
			outcome.Status = models.StatusSuccess
			outcome.RemoteID = applied.RemoteID
			outcome.LastSynced = &applied.LastSynced
			return nil
		}
	})
	if err != nil {
		var pe *syncerr.ProcessingError
		if errors.As(err, &pe) {
			return nil, nil, err
		}
		return nil, nil, fail(fmt.Errorf("apply failed: %w", err), false)
	}

	return outcome, created, nil
}

// recordAttempt updates the retry ledger. Ledger failures are logged, not reported.
func (e *Engine) recordAttempt(ctx context.Context, ent *models.SyncEntity, status models.SyncStatus, message string) {
	if !models.CanTransition(models.StatusInProgress, status) {
		e.logger.Error("invalid status transition",
			slog.String("entity_type", ent.EntityType),
			slog.String("entity_id", ent.LocalID),
			slog.String("status", string(status)),
		)
		return
	}

	err := e.store.RecordAttempt(context.WithoutCancel(ctx), &models.SyncStatusRecord{
		TenantID:     ent.TenantID,
		EntityType:   ent.EntityType,
		EntityID:     ent.LocalID,
		Status:       status,
		LastAttempt:  e.clock(),
		ErrorMessage: message,
	})
	if err != nil {
		e.logger.Error("failed to record sync status",
			slog.String("entity_type", ent.EntityType),
			slog.String("entity_id", ent.LocalID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) appendHistory(ctx context.Context, entry *models.HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.clock()
	}
	if err := e.store.AppendHistory(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Error("failed to append history",
			slog.String("operation", entry.Operation),
			slog.String("error", err.Error()),
		)
	}
}

func uploadOutcome(r *models.UploadResult) string {
	switch {
	case r.Cancelled:
		return models.OutcomeCancelled
	case r.Failed == 0:
		return models.OutcomeSuccess
	case r.Failed == r.Processed:
		return models.OutcomeFailed
	default:
		return models.OutcomePartial
	}
}

func uploadDetails(pkg *models.SyncPackage, r *models.UploadResult) string {
	return fmt.Sprintf("types=%s processed=%d success=%d failed=%d conflicts=%d skipped=%d",
		strings.Join(packageTypes(pkg), ","), r.Processed, r.Successful, r.Failed, r.Conflicted, r.Skipped)
}

// packageTypes returns the distinct non-empty entity types of the package change sets.
func packageTypes(pkg *models.SyncPackage) []string {
	types := make([]string, 0, len(pkg.ChangeSets))
	for _, cs := range pkg.ChangeSets {
		if cs.EntityType != "" && !slices.Contains(types, cs.EntityType) {
			types = append(types, cs.EntityType)
		}
	}
	return types
}
