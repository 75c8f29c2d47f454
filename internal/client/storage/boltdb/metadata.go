package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	keyDownloadCursor    = "download_cursor"
	keyLastSyncTimestamp = "last_sync_timestamp"
)

// SaveCursor stores the cursor returned by the last applied download page
func (s *Storage) SaveCursor(ctx context.Context, cursor string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		if err := bucket.Put([]byte(keyDownloadCursor), []byte(cursor)); err != nil {
			return fmt.Errorf("failed to save download cursor: %w", err)
		}
		return nil
	})
}

// GetCursor returns the stored download cursor
// Returns "" if nothing was downloaded yet
func (s *Storage) GetCursor(ctx context.Context) (string, error) {
	var cursor string
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		cursor = string(bucket.Get([]byte(keyDownloadCursor)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to get download cursor: %w", err)
	}
	return cursor, nil
}

// SaveLastSyncTime saves the time of the last successful sync
func (s *Storage) SaveLastSyncTime(ctx context.Context, t time.Time) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Конвертируем время в миллисекунды
		timestampBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(timestampBytes, uint64(t.UnixMilli()))

		if err := bucket.Put([]byte(keyLastSyncTimestamp), timestampBytes); err != nil {
			return fmt.Errorf("failed to save last sync timestamp: %w", err)
		}
		return nil
	})
}

// GetLastSyncTime retrieves the time of the last successful sync
// Returns the zero time if no sync has been performed yet
func (s *Storage) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	var ts time.Time

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		timestampBytes := bucket.Get([]byte(keyLastSyncTimestamp))
		if timestampBytes == nil {
			// первая синхронизация
			return nil
		}
		ts = time.UnixMilli(int64(binary.BigEndian.Uint64(timestampBytes))).UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	return ts, nil
}
