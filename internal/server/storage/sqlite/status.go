package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

// RecordAttempt upserts the status row of one entity.
func (q *queries) RecordAttempt(ctx context.Context, rec *models.SyncStatusRecord) error {
	var lastSuccess sql.NullInt64
	if rec.Status == models.StatusSuccess {
		lastSuccess = sql.NullInt64{Int64: toMillis(rec.LastAttempt), Valid: true}
	}

	query := `
		INSERT INTO sync_status (
			tenant_id, entity_type, entity_id, status,
			last_attempt, last_success, attempt_count, error_message
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (tenant_id, entity_type, entity_id) DO UPDATE SET
			status = excluded.status,
			last_attempt = excluded.last_attempt,
			last_success = COALESCE(excluded.last_success, sync_status.last_success),
			attempt_count = sync_status.attempt_count + 1,
			error_message = excluded.error_message
	`

	_, err := q.db.ExecContext(ctx, query,
		rec.TenantID,
		rec.EntityType,
		rec.EntityID,
		string(rec.Status),
		toMillis(rec.LastAttempt),
		lastSuccess,
		rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// GetStatus returns the status row of one entity.
// Returns ErrStatusNotFound if it was never attempted
func (q *queries) GetStatus(ctx context.Context, tenantID, entityType, entityID string) (*models.SyncStatusRecord, error) {
	query := `
		SELECT tenant_id, entity_type, entity_id, status,
		       last_attempt, last_success, attempt_count, error_message
		FROM sync_status
		WHERE tenant_id = ? AND entity_type = ? AND entity_id = ?
	`

	var (
		rec         models.SyncStatusRecord
		status      string
		lastAttempt int64
		lastSuccess sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, query, tenantID, entityType, entityID).Scan(
		&rec.TenantID,
		&rec.EntityType,
		&rec.EntityID,
		&status,
		&lastAttempt,
		&lastSuccess,
		&rec.AttemptCount,
		&rec.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrStatusNotFound
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	rec.Status = models.SyncStatus(status)
	rec.LastAttempt = fromMillis(lastAttempt)
	rec.LastSuccess = fromNullMillis(lastSuccess)
	return &rec, nil
}

// CountStatuses groups status rows by entity type and status.
func (q *queries) CountStatuses(ctx context.Context, tenantID string) (counts storage.StatusCounts, err error) {
	query := `
		SELECT entity_type, status, COUNT(*)
		FROM sync_status
		WHERE (? = '' OR tenant_id = ?)
		GROUP BY entity_type, status
	`

	rows, err := q.db.QueryContext(ctx, query, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	counts = make(storage.StatusCounts)
	for rows.Next() {
		var (
			entityType, status string
			n                  int
		)
		if err := rows.Scan(&entityType, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		if counts[entityType] == nil {
			counts[entityType] = make(map[models.SyncStatus]int)
		}
		counts[entityType][models.SyncStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}
