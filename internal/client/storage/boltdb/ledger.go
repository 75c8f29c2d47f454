package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/validation"
)

// RecordChange appends change to the ledger and applies it to the local replica in one transaction.
func (s *Storage) RecordChange(ctx context.Context, change *storage.Change) (uint64, error) {
	if err := validation.ValidateEntityType(change.EntityType); err != nil {
		return 0, err
	}
	if err := validation.ValidateLocalID(change.LocalID); err != nil {
		return 0, err
	}
	if !change.Operation.Valid() {
		return 0, fmt.Errorf("unknown operation %q", change.Operation)
	}

	now := models.NormalizeTime(s.now())
	if change.LocalTimestamp.IsZero() {
		change.LocalTimestamp = now
	}
	change.LocalTimestamp = models.NormalizeTime(change.LocalTimestamp)
	change.Status = models.StatusPending

	err := s.update(func(tx *bbolt.Tx) error {
		key := entityKey(change.EntityType, change.LocalID)

		var ident storage.Identity
		found, err := getJSON(tx.Bucket(bucketIdentities), key, &ident)
		if err != nil {
			return err
		}
		if found {
			change.RemoteID = ident.RemoteID
			observed := ident.LastSynced
			change.RemoteTimestamp = &observed
		}

		var rec storage.ReplicaRecord
		hasRecord, err := getJSON(tx.Bucket(bucketReplica), key, &rec)
		if err != nil {
			return err
		}
		if !hasRecord {
			rec = storage.ReplicaRecord{EntityType: change.EntityType, LocalID: change.LocalID}
		}

		switch change.Operation {
		case models.OperationCreate:
			if hasRecord && !rec.Deleted {
				return fmt.Errorf("%s %s already exists", change.EntityType, change.LocalID)
			}
		default:
			if !hasRecord {
				return fmt.Errorf("%s %s: %w", change.EntityType, change.LocalID, storage.ErrRecordNotFound)
			}
			if change.BasePayload == nil && rec.SyncedPayload != nil {
				base := rec.SyncedPayload.Clone()
				change.BasePayload = &base
			}
		}
		if change.Operation != models.OperationCreate && change.Operation != models.OperationUpdate && change.Payload.IsEmpty() {
			change.Payload = rec.Payload.Clone()
		}

		changes := tx.Bucket(bucketChanges)
		seq, err := changes.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		change.Seq = seq
		if err := putJSON(changes, itob(seq), change); err != nil {
			return err
		}

		rec.RemoteID = change.RemoteID
		rec.UpdatedAt = change.LocalTimestamp
		rec.Payload = change.Payload.Clone()
		rec.Deleted = change.Operation == models.OperationDelete
		if err := putJSON(tx.Bucket(bucketReplica), key, &rec); err != nil {
			return err
		}

		if change.Operation == models.OperationDelete {
			return putJSON(tx.Bucket(bucketTombstones), key, &storage.Tombstone{
				DeletedAt:   change.LocalTimestamp,
				EntityType:  change.EntityType,
				LocalID:     change.LocalID,
				RemoteID:    change.RemoteID,
				LastPayload: change.Payload.Clone(),
			})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record change: %w", err)
	}
	return change.Seq, nil
}

// forEachChange iterates the ledger in sequence order until fn returns false.
func (s *Storage) forEachChange(fn func(c *storage.Change) bool) error {
	return s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketChanges).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var change storage.Change
			if err := json.Unmarshal(v, &change); err != nil {
				return fmt.Errorf("failed to unmarshal change: %w", err)
			}
			if !fn(&change) {
				return nil
			}
		}
		return nil
	})
}

// PendingChanges returns up to limit pending entries in ledger order.
func (s *Storage) PendingChanges(ctx context.Context, limit int) ([]*storage.Change, error) {
	var out []*storage.Change
	err := s.forEachChange(func(c *storage.Change) bool {
		if c.Status == models.StatusPending {
			out = append(out, c)
		}
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

// ChangesByStatus returns entries in status in ledger order.
func (s *Storage) ChangesByStatus(ctx context.Context, status models.SyncStatus) ([]*storage.Change, error) {
	var out []*storage.Change
	err := s.forEachChange(func(c *storage.Change) bool {
		if c.Status == status {
			out = append(out, c)
		}
		return true
	})
	return out, err
}

// GetChange returns a single ledger entry.
func (s *Storage) GetChange(ctx context.Context, seq uint64) (*storage.Change, error) {
	var change storage.Change
	err := s.view(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketChanges), itob(seq), &change)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrChangeNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// UpdateChanges applies all updates or none.
func (s *Storage) UpdateChanges(ctx context.Context, updates []storage.ChangeUpdate) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChanges)
		for _, u := range updates {
			var change storage.Change
			found, err := getJSON(b, itob(u.Seq), &change)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("seq %d: %w", u.Seq, storage.ErrChangeNotFound)
			}
			change.Status = u.Status
			change.Error = u.Error
			if u.PackageID != "" {
				change.PackageID = u.PackageID
			}
			if err := putJSON(b, itob(u.Seq), &change); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountChanges returns the number of entries per status.
func (s *Storage) CountChanges(ctx context.Context) (map[models.SyncStatus]int, error) {
	counts := make(map[models.SyncStatus]int)
	err := s.forEachChange(func(c *storage.Change) bool {
		counts[c.Status]++
		return true
	})
	return counts, err
}

// HasUnsyncedChange reports whether the entity has a pending or in-flight change.
func (s *Storage) HasUnsyncedChange(ctx context.Context, entityType, localID string) (bool, error) {
	found := false
	err := s.forEachChange(func(c *storage.Change) bool {
		if c.EntityType == entityType && c.LocalID == localID &&
			(c.Status == models.StatusPending || c.Status == models.StatusInProgress) {
			found = true
			return false
		}
		return true
	})
	return found, err
}
