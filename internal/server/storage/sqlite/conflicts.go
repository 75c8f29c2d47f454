package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

const conflictColumns = `conflict_id, tenant_id, entity_type, entity_id, remote_id, fingerprint,
	operation, strategy, status, local_data, remote_data, base_data, resolution, remote_deleted,
	field_conflicts, local_timestamp, remote_timestamp, detected_at, resolved_at, resolved_by`

// CreateConflict stores c unless its fingerprint is already known for the tenant.
func (q *queries) CreateConflict(ctx context.Context, c *models.ConflictRecord) (*models.ConflictRecord, bool, error) {
	local := c.LocalData
	localJSON, err := payloadJSON(&local)
	if err != nil {
		return nil, false, err
	}
	remoteJSON, err := payloadJSON(c.RemoteData)
	if err != nil {
		return nil, false, err
	}
	baseJSON, err := payloadJSON(c.BaseData)
	if err != nil {
		return nil, false, err
	}
	resolutionJSON, err := payloadJSON(c.Resolution)
	if err != nil {
		return nil, false, err
	}

	fieldConflicts := c.FieldConflicts
	if fieldConflicts == nil {
		fieldConflicts = []models.FieldConflict{}
	}
	fields, err := json.Marshal(fieldConflicts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal field conflicts: %w", err)
	}

	query := `
		INSERT INTO conflicts (` + conflictColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, fingerprint) DO NOTHING
	`

	result, err := q.db.ExecContext(ctx, query,
		c.ConflictID,
		c.TenantID,
		c.EntityType,
		c.EntityID,
		c.RemoteID,
		c.Fingerprint,
		string(c.Operation),
		string(c.Strategy),
		string(c.Status),
		localJSON,
		remoteJSON,
		baseJSON,
		resolutionJSON,
		boolToInt(c.RemoteDeleted),
		string(fields),
		toMillis(c.LocalTimestamp),
		toMillis(c.RemoteTimestamp),
		toMillis(c.DetectedAt),
		nullMillis(c.ResolvedAt),
		c.ResolvedBy,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert conflict: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	// конфликт с таким fingerprint уже есть, возвращаем существующий
	if rows == 0 {
		existing, err := q.getConflictByFingerprint(ctx, c.TenantID, c.Fingerprint)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return c, true, nil
}

// GetConflict returns a conflict of the tenant.
// Returns ErrConflictNotFound if it doesn't exist
func (q *queries) GetConflict(ctx context.Context, tenantID, conflictID string) (*models.ConflictRecord, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE tenant_id = ? AND conflict_id = ?`

	c, err := scanConflict(q.db.QueryRowContext(ctx, query, tenantID, conflictID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return c, nil
}

func (q *queries) getConflictByFingerprint(ctx context.Context, tenantID, fingerprint string) (*models.ConflictRecord, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE tenant_id = ? AND fingerprint = ?`

	c, err := scanConflict(q.db.QueryRowContext(ctx, query, tenantID, fingerprint))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict by fingerprint: %w", err)
	}
	return c, nil
}

// ListConflicts returns conflicts of a tenant in one status, oldest first.
func (q *queries) ListConflicts(ctx context.Context, tenantID, entityType string, status models.ConflictStatus) (result []*models.ConflictRecord, err error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts
		WHERE tenant_id = ? AND status = ? AND (? = '' OR entity_type = ?)
		ORDER BY detected_at ASC, conflict_id ASC`

	rows, err := q.db.QueryContext(ctx, query, tenantID, string(status), entityType, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}

	return result, nil
}

// ResolveConflict moves a pending conflict to resolved with a conditional update.
func (q *queries) ResolveConflict(
	ctx context.Context,
	tenantID, conflictID string,
	strategy models.Strategy,
	resolution *models.Payload,
	resolvedBy string,
	at time.Time,
) error {
	resolutionJSON, err := payloadJSON(resolution)
	if err != nil {
		return err
	}

	query := `
		UPDATE conflicts
		SET status = ?, strategy = ?, resolution = ?, resolved_by = ?, resolved_at = ?
		WHERE tenant_id = ? AND conflict_id = ? AND status = ?
	`

	result, err := q.db.ExecContext(ctx, query,
		string(models.ConflictResolved),
		string(strategy),
		resolutionJSON,
		resolvedBy,
		toMillis(at),
		tenantID,
		conflictID,
		string(models.ConflictPending),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// ничего не обновили: либо конфликта нет, либо он уже разрешен
	if _, err := q.GetConflict(ctx, tenantID, conflictID); err != nil {
		return err
	}
	return storage.ErrConflictAlreadyResolved
}

// CountPendingConflicts counts pending conflicts of a tenant or of everyone.
func (q *queries) CountPendingConflicts(ctx context.Context, tenantID string) (int, error) {
	query := `SELECT COUNT(*) FROM conflicts WHERE status = ? AND (? = '' OR tenant_id = ?)`

	var n int
	if err := q.db.QueryRowContext(ctx, query, string(models.ConflictPending), tenantID, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return n, nil
}

func scanConflict(row scanner) (*models.ConflictRecord, error) {
	var (
		c                                          models.ConflictRecord
		operation, strategy, status, fields        string
		localJSON, remoteJSON, baseJSON, resolJSON sql.NullString
		remoteDeleted                              int
		localTS, remoteTS, detectedAt              int64
		resolvedAt                                 sql.NullInt64
	)
	err := row.Scan(
		&c.ConflictID,
		&c.TenantID,
		&c.EntityType,
		&c.EntityID,
		&c.RemoteID,
		&c.Fingerprint,
		&operation,
		&strategy,
		&status,
		&localJSON,
		&remoteJSON,
		&baseJSON,
		&resolJSON,
		&remoteDeleted,
		&fields,
		&localTS,
		&remoteTS,
		&detectedAt,
		&resolvedAt,
		&c.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}

	local, err := parsePayload(localJSON)
	if err != nil {
		return nil, err
	}
	if local != nil {
		c.LocalData = *local
	}
	if c.RemoteData, err = parsePayload(remoteJSON); err != nil {
		return nil, err
	}
	if c.BaseData, err = parsePayload(baseJSON); err != nil {
		return nil, err
	}
	if c.Resolution, err = parsePayload(resolJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &c.FieldConflicts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal field conflicts: %w", err)
	}
	if len(c.FieldConflicts) == 0 {
		c.FieldConflicts = nil
	}

	c.Operation = models.Operation(operation)
	c.Strategy = models.Strategy(strategy)
	c.Status = models.ConflictStatus(status)
	c.RemoteDeleted = intToBool(remoteDeleted)
	c.LocalTimestamp = fromMillis(localTS)
	c.RemoteTimestamp = fromMillis(remoteTS)
	c.DetectedAt = fromMillis(detectedAt)
	c.ResolvedAt = fromNullMillis(resolvedAt)
	return &c, nil
}
