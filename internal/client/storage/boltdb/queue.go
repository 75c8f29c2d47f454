package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sethvargo/go-retry"
	"go.etcd.io/bbolt"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/models"
)

// Enqueue stores a sealed package. Re-enqueueing the same package id replaces it.
func (s *Storage) Enqueue(ctx context.Context, pkg *models.SyncPackage, seqs []uint64, now time.Time) error {
	if pkg == nil || pkg.PackageID == "" {
		return fmt.Errorf("package id is required")
	}
	now = models.NormalizeTime(now)
	item := &storage.QueueItem{
		Package:     pkg,
		Seqs:        seqs,
		EnqueuedAt:  now,
		NextRetryAt: now,
	}
	return s.update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketQueue), []byte(pkg.PackageID), item)
	})
}

func (s *Storage) queueItems(filter func(*storage.QueueItem) bool) ([]*storage.QueueItem, error) {
	var out []*storage.QueueItem
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(k, v []byte) error {
			var item storage.QueueItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("failed to unmarshal queue item %s: %w", k, err)
			}
			if filter(&item) {
				out = append(out, &item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out, nil
}

// Due returns live items ready for another attempt, oldest first.
func (s *Storage) Due(ctx context.Context, now time.Time) ([]*storage.QueueItem, error) {
	return s.queueItems(func(item *storage.QueueItem) bool {
		return !item.Dead && !item.NextRetryAt.After(now)
	})
}

// QueueItems returns every queued item.
func (s *Storage) QueueItems(ctx context.Context) ([]*storage.QueueItem, error) {
	return s.queueItems(func(*storage.QueueItem) bool { return true })
}

// modifyItem loads, changes and writes back one queue item.
func (s *Storage) modifyItem(packageID string, fn func(item *storage.QueueItem)) (*storage.QueueItem, error) {
	var item storage.QueueItem
	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		found, err := getJSON(b, []byte(packageID), &item)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("package %s: %w", packageID, storage.ErrQueueItemNotFound)
		}
		fn(&item)
		return putJSON(b, []byte(packageID), &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// MarkAttempt records a failed upload and pushes next_retry_at out.
func (s *Storage) MarkAttempt(ctx context.Context, packageID string, cause error, now time.Time) (*storage.QueueItem, error) {
	return s.modifyItem(packageID, func(item *storage.QueueItem) {
		item.Attempts++
		if cause != nil {
			item.LastError = cause.Error()
		}
		item.NextRetryAt = models.NormalizeTime(now.Add(s.retryDelay(item.Attempts)))
	})
}

// DeadLetter parks an item permanently.
func (s *Storage) DeadLetter(ctx context.Context, packageID, reason string) error {
	_, err := s.modifyItem(packageID, func(item *storage.QueueItem) {
		item.Dead = true
		item.LastError = reason
	})
	return err
}

// Ack drops an acknowledged item.
func (s *Storage) Ack(ctx context.Context, packageID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		if b.Get([]byte(packageID)) == nil {
			return fmt.Errorf("package %s: %w", packageID, storage.ErrQueueItemNotFound)
		}
		return b.Delete([]byte(packageID))
	})
}

// retryDelay returns the backoff after the given number of failed attempts.
func (s *Storage) retryDelay(attempts int) time.Duration {
	if s.baseDelay <= 0 {
		return 0
	}
	b := retry.WithCappedDuration(s.maxDelay, retry.NewExponential(s.baseDelay))
	var d time.Duration
	for i := 0; i < attempts; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}
