// Package boltdb implements the replica's durable sync state on bbolt.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/multierr"

	"github.com/iudanet/booksync/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketChanges    = []byte("changes")
	bucketQueue      = []byte("queue")
	bucketIdentities = []byte("identities")
	bucketTombstones = []byte("tombstones")
	bucketReplica    = []byte("replica")
	bucketMetadata   = []byte("metadata")

	allBuckets = [][]byte{bucketChanges, bucketQueue, bucketIdentities, bucketTombstones, bucketReplica, bucketMetadata}
)

const (
	// DefaultRetryBaseDelay is the delay after the first failed upload.
	DefaultRetryBaseDelay = 5 * time.Second
	// DefaultRetryMaxDelay caps the exponential backoff.
	DefaultRetryMaxDelay = 30 * time.Minute
)

var _ storage.Store = (*Storage)(nil)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db        *bbolt.DB
	now       func() time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
}

// Option configures Storage.
type Option func(*Storage)

// WithRetryBackoff sets the queue backoff bounds.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(s *Storage) {
		s.baseDelay = base
		s.maxDelay = max
	}
}

// WithClock overrides the clock used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{
		db:        db,
		now:       time.Now,
		baseDelay: DefaultRetryBaseDelay,
		maxDelay:  DefaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initBuckets(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to initialize buckets: %w", err), db.Close())
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(fn)
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(fn)
}

// entityKey: ключ записи сущности: тип и локальный id через нулевой байт
func entityKey(entityType, localID string) []byte {
	return []byte(entityType + "\x00" + localID)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return b.Put(key, data)
}

// getJSON decodes the value at key into v and reports whether it existed.
func getJSON(b *bbolt.Bucket, key []byte, v any) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return true, nil
}
