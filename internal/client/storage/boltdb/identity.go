package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/models"
)

// GetIdentity returns the cached identity of a local entity.
func (s *Storage) GetIdentity(ctx context.Context, entityType, localID string) (*storage.Identity, error) {
	var ident storage.Identity
	err := s.view(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketIdentities), entityKey(entityType, localID), &ident)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrIdentityNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

// PutIdentity merges id into the cache.
func (s *Storage) PutIdentity(ctx context.Context, id *storage.Identity) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdentities)
		key := entityKey(id.EntityType, id.LocalID)

		next := *id
		next.LastSynced = models.NormalizeTime(id.LastSynced)

		var cur storage.Identity
		found, err := getJSON(b, key, &cur)
		if err != nil {
			return err
		}
		if found {
			if cur.RemoteID != "" {
				next.RemoteID = cur.RemoteID
			}
			if cur.LastSynced.After(next.LastSynced) {
				next.LastSynced = cur.LastSynced
				next.ContentHash = cur.ContentHash
			}
		}
		return putJSON(b, key, &next)
	})
}

// ListTombstones returns local deletes, optionally only those not yet acknowledged.
func (s *Storage) ListTombstones(ctx context.Context, unsyncedOnly bool) ([]*storage.Tombstone, error) {
	var out []*storage.Tombstone
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTombstones).ForEach(func(k, v []byte) error {
			var ts storage.Tombstone
			if err := json.Unmarshal(v, &ts); err != nil {
				return fmt.Errorf("failed to unmarshal tombstone %q: %w", k, err)
			}
			if unsyncedOnly && ts.Synced {
				return nil
			}
			out = append(out, &ts)
			return nil
		})
	})
	return out, err
}

// MarkTombstoneSynced flags a tombstone as acknowledged. A missing tombstone is not an error.
func (s *Storage) MarkTombstoneSynced(ctx context.Context, entityType, localID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTombstones)
		key := entityKey(entityType, localID)
		var ts storage.Tombstone
		found, err := getJSON(b, key, &ts)
		if err != nil || !found {
			return err
		}
		ts.Synced = true
		return putJSON(b, key, &ts)
	})
}
