package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/codec"
	"github.com/iudanet/booksync/internal/crypto"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
	"github.com/iudanet/booksync/pkg/api"
)

// PushResult counts what a push did.
type PushResult struct {
	Sealed    int // новых пакетов в очереди
	Uploaded  int // подтвержденных сервером пакетов
	Retrying  int // пакетов, отложенных с backoff
	Rejected  int // пакетов в dead-letter
	Succeeded int
	Conflicts int
	Failed    int
	Skipped   int
}

// entityKey identifies an entity inside the ledger.
type entityKey struct {
	entityType string
	localID    string
}

// pendingEntity is the coalesced change of one entity inside a package.
type pendingEntity struct {
	entity *models.SyncEntity // nil: изменения взаимно уничтожились
	key    entityKey
	seqs   []uint64
}

// Push seals pending ledger entries into packages and uploads every due queue item.
// Entities with a change still in flight are held back and sent once that change is acknowledged.
func (s *Service) Push(ctx context.Context) (*PushResult, error) {
	result := &PushResult{}

	for round := 0; round < 2; round++ {
		held, err := s.seal(ctx, result)
		if err != nil {
			return result, err
		}
		uploaded := result.Uploaded
		if err := s.drain(ctx, result); err != nil {
			return result, err
		}
		if held == 0 || result.Uploaded == uploaded {
			break
		}
	}
	return result, nil
}

// seal turns pending ledger entries into queued packages and returns how many entries it held back.
func (s *Service) seal(ctx context.Context, result *PushResult) (int, error) {
	pending, err := s.store.PendingChanges(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending changes: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	inFlight, err := s.store.ChangesByStatus(ctx, models.StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to load in-flight changes: %w", err)
	}
	blocked := make(map[entityKey]bool, len(inFlight))
	for _, c := range inFlight {
		blocked[entityKey{c.EntityType, c.LocalID}] = true
	}

	ready := make([]*storage.Change, 0, len(pending))
	held := 0
	for _, c := range pending {
		if blocked[entityKey{c.EntityType, c.LocalID}] {
			held++
			continue
		}
		ready = append(ready, c)
	}

	// одна сущность попадает ровно в один пакет раунда
	entities := coalesce(ready)
	for start := 0; start < len(entities); start += s.cfg.MaxPackageEntries {
		end := min(start+s.cfg.MaxPackageEntries, len(entities))
		if err := s.sealChunk(ctx, entities[start:end], result); err != nil {
			return held, err
		}
	}
	if held > 0 {
		s.logger.Debug("Changes held back until in-flight changes are acknowledged", "count", held)
	}
	return held, nil
}

func (s *Service) sealChunk(ctx context.Context, chunk []*pendingEntity, result *PushResult) error {
	var (
		entities []models.SyncEntity
		sent     []uint64
		updates  []storage.ChangeUpdate
	)
	for _, pe := range chunk {
		if pe.entity == nil {
			// создание и удаление до отправки: серверу нечего сообщать
			if err := s.store.MarkTombstoneSynced(ctx, pe.key.entityType, pe.key.localID); err != nil {
				return err
			}
			for _, seq := range pe.seqs {
				updates = append(updates, storage.ChangeUpdate{Seq: seq, Status: models.StatusSkipped})
			}
			continue
		}
		if err := s.refreshObserved(ctx, pe.entity); err != nil {
			return err
		}
		entities = append(entities, *pe.entity)
		sent = append(sent, pe.seqs...)
	}

	if len(entities) > 0 {
		pkg := codec.Build(s.cfg.TenantID, s.cfg.UserID, entities, s.now())
		// очередь пишется раньше статусов: после сбоя пакет уйдет повторно, сервер его распознает
		if err := s.store.Enqueue(ctx, pkg, sent, s.now()); err != nil {
			return fmt.Errorf("failed to enqueue package: %w", err)
		}
		for _, seq := range sent {
			updates = append(updates, storage.ChangeUpdate{Seq: seq, Status: models.StatusInProgress, PackageID: pkg.PackageID})
		}
		result.Sealed++
		s.logger.Info("Package sealed",
			"package_id", pkg.PackageID,
			"entities", len(entities),
			"changes", len(sent))
	}
	if err := s.store.UpdateChanges(ctx, updates); err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	return nil
}

// coalesce folds the changes of each entity into one, keeping the order in which entities first
// appear in the ledger.
func coalesce(changes []*storage.Change) []*pendingEntity {
	var order []*pendingEntity
	byKey := make(map[entityKey]*pendingEntity)

	for _, c := range changes {
		key := entityKey{c.EntityType, c.LocalID}
		pe, ok := byKey[key]
		if !ok {
			pe = &pendingEntity{key: key}
			byKey[key] = pe
			order = append(order, pe)
		}
		pe.seqs = append(pe.seqs, c.Seq)

		next := toSyncEntity(c)
		cur := pe.entity
		switch {
		case cur == nil:
			pe.entity = next
		case cur.Operation == models.OperationCreate && c.Operation == models.OperationDelete:
			pe.entity = nil
		case cur.Operation == models.OperationCreate:
			next.Operation = models.OperationCreate
			next.BasePayload = nil
			pe.entity = next
		default:
			// база остается от первого изменения
			next.BasePayload = cur.BasePayload
			pe.entity = next
		}
	}
	return order
}

func toSyncEntity(c *storage.Change) *models.SyncEntity {
	return &models.SyncEntity{
		EntityType:      c.EntityType,
		LocalID:         c.LocalID,
		RemoteID:        c.RemoteID,
		Operation:       c.Operation,
		LocalTimestamp:  c.LocalTimestamp,
		RemoteTimestamp: c.RemoteTimestamp,
		BasePayload:     c.BasePayload,
		Payload:         c.Payload,
	}
}

// refreshObserved picks up remote ids, watermarks and synced bases learned after the change was
// recorded, typically from the acknowledgement of an earlier change of the same entity.
func (s *Service) refreshObserved(ctx context.Context, ent *models.SyncEntity) error {
	if ent.Operation == models.OperationCreate {
		return nil
	}
	ident, err := s.store.GetIdentity(ctx, ent.EntityType, ent.LocalID)
	if errors.Is(err, storage.ErrIdentityNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	ent.RemoteID = ident.RemoteID
	if ent.RemoteTimestamp == nil || ident.LastSynced.After(*ent.RemoteTimestamp) {
		observed := ident.LastSynced
		ent.RemoteTimestamp = &observed
	}

	if ent.BasePayload == nil {
		rec, err := s.store.GetRecord(ctx, ent.EntityType, ent.LocalID)
		if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
			return err
		}
		if rec != nil && rec.SyncedPayload != nil {
			base := rec.SyncedPayload.Clone()
			ent.BasePayload = &base
		}
	}
	return nil
}

// drain uploads due queue items. A transport failure stops the drain; the item is retried later.
func (s *Service) drain(ctx context.Context, result *PushResult) error {
	due, err := s.store.Due(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}

	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.api.Upload(ctx, api.UploadRequest{
			TenantID: s.cfg.TenantID,
			Package:  item.Package,
		})
		switch {
		case err == nil && resp.Cancelled:
			err = errors.New("upload cancelled by server")
			fallthrough
		case syncerr.IsTransport(err):
			if _, markErr := s.store.MarkAttempt(ctx, item.PackageID(), err, s.now()); markErr != nil {
				return fmt.Errorf("failed to record attempt: %w", markErr)
			}
			result.Retrying++
			s.logger.Warn("Upload failed, will retry", "package_id", item.PackageID(), "attempts", item.Attempts+1, "error", err)
			return nil
		case syncerr.IsValidation(err):
			if err := s.reject(ctx, item, err); err != nil {
				return err
			}
			result.Rejected++
			continue
		case err != nil:
			return err
		}

		if err := s.acknowledge(ctx, item, resp, result); err != nil {
			return err
		}
		result.Uploaded++
	}
	return nil
}

// reject dead-letters a package the server refused as a whole and fails its ledger entries.
func (s *Service) reject(ctx context.Context, item *storage.QueueItem, cause error) error {
	s.logger.Error("Package rejected", "package_id", item.PackageID(), "error", cause)
	if err := s.store.DeadLetter(ctx, item.PackageID(), cause.Error()); err != nil {
		return err
	}
	updates := make([]storage.ChangeUpdate, 0, len(item.Seqs))
	for _, seq := range item.Seqs {
		updates = append(updates, storage.ChangeUpdate{Seq: seq, Status: models.StatusFailed, Error: cause.Error()})
	}
	return s.store.UpdateChanges(ctx, updates)
}

// acknowledge applies per-entity outcomes to the ledger and identity cache, then drops the item.
func (s *Service) acknowledge(ctx context.Context, item *storage.QueueItem, resp *api.UploadResponse, result *PushResult) error {
	seqsByKey := make(map[entityKey][]uint64)
	for _, seq := range item.Seqs {
		change, err := s.store.GetChange(ctx, seq)
		if err != nil {
			return err
		}
		key := entityKey{change.EntityType, change.LocalID}
		seqsByKey[key] = append(seqsByKey[key], seq)
	}
	sentByKey := make(map[entityKey]models.SyncEntity)
	for _, ent := range item.Package.Entities() {
		sentByKey[entityKey{ent.EntityType, ent.LocalID}] = ent
	}
	messages := make(map[entityKey]string)
	for _, e := range resp.Errors {
		messages[entityKey{e.EntityType, e.EntityID}] = e.Message
	}

	var updates []storage.ChangeUpdate
	for _, out := range resp.Outcomes {
		key := entityKey{out.EntityType, out.LocalID}
		update := storage.ChangeUpdate{Status: out.Status}

		switch out.Status {
		case models.StatusSuccess:
			result.Succeeded++
			sent := sentByKey[key]
			sent.RemoteID = out.RemoteID
			sent.RemoteTimestamp = out.LastSynced
			sent.ContentHash = crypto.ContentHash(sent.EntityType, sent.LocalID, string(sent.Operation), sent.Payload.SchemaVersion, sent.Payload.Data)
			if err := s.confirm(ctx, &sent); err != nil {
				return err
			}
		case models.StatusConflict:
			result.Conflicts++
			update.Error = "conflict " + out.ConflictID
		case models.StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
			update.Status = models.StatusFailed
			update.Error = messages[key]
		}

		for _, seq := range seqsByKey[key] {
			u := update
			u.Seq = seq
			updates = append(updates, u)
		}
	}
	if err := s.store.UpdateChanges(ctx, updates); err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}

	s.logger.Info("Package acknowledged",
		"package_id", item.PackageID(),
		"sync_id", resp.SyncID,
		"success", resp.Successful,
		"failed", resp.Failed,
		"conflicts", resp.Conflicted)
	return s.store.Ack(ctx, item.PackageID())
}

// confirm records a successfully applied change as the new synced base of the entity.
// The local payload is left alone when a newer local edit is waiting.
func (s *Service) confirm(ctx context.Context, sent *models.SyncEntity) error {
	if sent.RemoteTimestamp != nil {
		s.clock.Observe(*sent.RemoteTimestamp)
		err := s.store.PutIdentity(ctx, &storage.Identity{
			EntityType:  sent.EntityType,
			LocalID:     sent.LocalID,
			RemoteID:    sent.RemoteID,
			LastSynced:  *sent.RemoteTimestamp,
			ContentHash: sent.ContentHash,
		})
		if err != nil {
			return fmt.Errorf("failed to update identity: %w", err)
		}
	}

	rec, err := s.store.GetRecord(ctx, sent.EntityType, sent.LocalID)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	synced := sent.Payload.Clone()
	rec.SyncedPayload = &synced
	rec.RemoteID = sent.RemoteID
	if err := s.store.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to update replica: %w", err)
	}

	if sent.Operation == models.OperationDelete {
		return s.store.MarkTombstoneSynced(ctx, sent.EntityType, sent.LocalID)
	}
	return nil
}
