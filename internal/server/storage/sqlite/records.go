package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

const recordColumns = `tenant_id, entity_type, remote_id, local_id, payload, schema_version,
	content_hash, updated_by, deleted, updated_at`

// GetRecord returns the record, deleted or not.
// Returns ErrRecordNotFound if it doesn't exist
func (q *queries) GetRecord(ctx context.Context, tenantID, entityType, remoteID string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE tenant_id = ? AND entity_type = ? AND remote_id = ?`

	rec, err := scanRecord(q.db.QueryRowContext(ctx, query, tenantID, entityType, remoteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// PutRecord inserts or overwrites a record. The local id of the first writer is kept.
func (q *queries) PutRecord(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, entity_type, remote_id) DO UPDATE SET
			payload = excluded.payload,
			schema_version = excluded.schema_version,
			content_hash = excluded.content_hash,
			updated_by = excluded.updated_by,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`

	_, err := q.db.ExecContext(ctx, query,
		rec.TenantID,
		rec.EntityType,
		rec.RemoteID,
		rec.LocalID,
		rec.Payload.Data,
		rec.Payload.SchemaVersion,
		rec.ContentHash,
		rec.UpdatedBy,
		boolToInt(rec.Deleted),
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// DeleteRecord marks the record deleted and appends a tombstone holding rec.Payload.
// Returns ErrRecordNotFound if the record doesn't exist
func (q *queries) DeleteRecord(ctx context.Context, rec *models.Record, deletedBy string) error {
	query := `
		UPDATE records
		SET deleted = 1, content_hash = ?, updated_by = ?, updated_at = ?
		WHERE tenant_id = ? AND entity_type = ? AND remote_id = ?
	`

	result, err := q.db.ExecContext(ctx, query,
		rec.ContentHash,
		deletedBy,
		toMillis(rec.UpdatedAt),
		rec.TenantID,
		rec.EntityType,
		rec.RemoteID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrRecordNotFound
	}

	// центральное хранилище уже применило удаление, tombstone сразу synced
	tombstone := `
		INSERT INTO tombstones (
			tenant_id, entity_type, entity_id, remote_id,
			deleted_at, deleted_by, last_payload, schema_version, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	`
	_, err = q.db.ExecContext(ctx, tombstone,
		rec.TenantID,
		rec.EntityType,
		rec.LocalID,
		rec.RemoteID,
		toMillis(rec.UpdatedAt),
		deletedBy,
		rec.Payload.Data,
		rec.Payload.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to write tombstone: %w", err)
	}

	return nil
}

// ListRecordsAfter returns records strictly after pos in (updated_at, remote_id) order.
func (q *queries) ListRecordsAfter(ctx context.Context, tenantID, entityType string, pos storage.Position, limit int) (result []*models.Record, err error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE tenant_id = ? AND entity_type = ?
		  AND (updated_at > ? OR (updated_at = ? AND remote_id > ?))
		ORDER BY updated_at ASC, remote_id ASC
		LIMIT ?`

	after := toMillis(pos.Timestamp)
	if pos.Timestamp.IsZero() {
		after = -1
	}

	rows, err := q.db.QueryContext(ctx, query, tenantID, entityType, after, after, pos.RemoteID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return result, nil
}

// GetTombstone returns the latest tombstone of a record.
func (q *queries) GetTombstone(ctx context.Context, tenantID, entityType, remoteID string) (*models.Tombstone, error) {
	query := `
		SELECT tenant_id, entity_type, entity_id, remote_id, deleted_at,
		       deleted_by, last_payload, schema_version, synced
		FROM tombstones
		WHERE tenant_id = ? AND entity_type = ? AND remote_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	var (
		ts        models.Tombstone
		deletedAt int64
		synced    int
	)
	err := q.db.QueryRowContext(ctx, query, tenantID, entityType, remoteID).Scan(
		&ts.TenantID,
		&ts.EntityType,
		&ts.EntityID,
		&ts.RemoteID,
		&deletedAt,
		&ts.DeletedBy,
		&ts.LastPayload.Data,
		&ts.LastPayload.SchemaVersion,
		&synced,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTombstoneNotFound
		}
		return nil, fmt.Errorf("failed to get tombstone: %w", err)
	}

	ts.DeletedAt = fromMillis(deletedAt)
	ts.Synced = intToBool(synced)
	return &ts, nil
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec       models.Record
		deleted   int
		updatedAt int64
	)
	err := row.Scan(
		&rec.TenantID,
		&rec.EntityType,
		&rec.RemoteID,
		&rec.LocalID,
		&rec.Payload.Data,
		&rec.Payload.SchemaVersion,
		&rec.ContentHash,
		&rec.UpdatedBy,
		&deleted,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Deleted = intToBool(deleted)
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}
