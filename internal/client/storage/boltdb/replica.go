package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/booksync/internal/client/storage"
)

// GetRecord returns the local copy of a record, deleted ones included.
func (s *Storage) GetRecord(ctx context.Context, entityType, localID string) (*storage.ReplicaRecord, error) {
	var rec storage.ReplicaRecord
	err := s.view(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketReplica), entityKey(entityType, localID), &rec)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutRecord overwrites the local copy. It does not touch the ledger.
func (s *Storage) PutRecord(ctx context.Context, rec *storage.ReplicaRecord) error {
	return s.update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketReplica), entityKey(rec.EntityType, rec.LocalID), rec)
	})
}

// ListRecords returns records of entityType, or of every type when it is empty, sorted by type and local id.
func (s *Storage) ListRecords(ctx context.Context, entityType string, includeDeleted bool) ([]*storage.ReplicaRecord, error) {
	var out []*storage.ReplicaRecord
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReplica).ForEach(func(k, v []byte) error {
			var rec storage.ReplicaRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %q: %w", k, err)
			}
			if entityType != "" && rec.EntityType != entityType {
				return nil
			}
			if rec.Deleted && !includeDeleted {
				return nil
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].LocalID < out[j].LocalID
	})
	return out, nil
}
