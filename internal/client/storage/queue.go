package storage

import (
	"context"
	"time"

	"github.com/iudanet/booksync/internal/models"
)

// QueueItem is a sealed package waiting for an acknowledged upload.
type QueueItem struct {
	NextRetryAt time.Time           `json:"next_retry_at"`
	EnqueuedAt  time.Time           `json:"enqueued_at"`
	Package     *models.SyncPackage `json:"package"`
	LastError   string              `json:"last_error,omitempty"`
	Seqs        []uint64            `json:"seqs"`
	Attempts    int                 `json:"attempt_count"`
	Dead        bool                `json:"dead"`
}

// PackageID returns the id of the queued package.
func (q *QueueItem) PackageID() string {
	if q.Package == nil {
		return ""
	}
	return q.Package.PackageID
}

// QueueStorage is the outbound retry queue.
type QueueStorage interface {
	// Enqueue stores a sealed package together with the ledger entries it carries.
	Enqueue(ctx context.Context, pkg *models.SyncPackage, seqs []uint64, now time.Time) error

	// Due returns live items whose next_retry_at is not after now, oldest first.
	Due(ctx context.Context, now time.Time) ([]*QueueItem, error)

	// MarkAttempt records a failed attempt and schedules the next one with capped exponential backoff.
	MarkAttempt(ctx context.Context, packageID string, cause error, now time.Time) (*QueueItem, error)

	// DeadLetter keeps the item for inspection but never returns it from Due again.
	DeadLetter(ctx context.Context, packageID, reason string) error

	// Ack removes an acknowledged item.
	Ack(ctx context.Context, packageID string) error

	// QueueItems returns every item, dead-lettered ones included.
	QueueItems(ctx context.Context) ([]*QueueItem, error)
}
