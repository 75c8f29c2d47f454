package storage

import (
	"context"
	"time"

	"github.com/iudanet/booksync/internal/models"
)

// HistoryFilter selects a page of history entries.
type HistoryFilter struct {
	From        *time.Time
	To          *time.Time
	TenantID    string
	EntityTypes []string
	Page        int // starting at 1
	PageSize    int
}

// HistoryStorage persists the append-only audit log.
type HistoryStorage interface {
	// AppendHistory stores e, assigning an id when it has none.
	AppendHistory(ctx context.Context, e *models.HistoryEntry) error

	// ListHistory returns a page of entries, newest first, and the total number of matches.
	ListHistory(ctx context.Context, filter HistoryFilter) ([]*models.HistoryEntry, int, error)
}
