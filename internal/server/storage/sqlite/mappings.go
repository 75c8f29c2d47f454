package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

const mappingColumns = `tenant_id, entity_type, local_id, remote_id, last_synced,
	content_hash, status, created_at, updated_at`

// GetMapping returns the mapping of a local id.
// Returns ErrMappingNotFound if the entity was never synced
func (q *queries) GetMapping(ctx context.Context, tenantID, entityType, localID string) (*models.IdentityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM identity_mappings
		WHERE tenant_id = ? AND entity_type = ? AND local_id = ?`

	m, err := scanMapping(q.db.QueryRowContext(ctx, query, tenantID, entityType, localID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, nil
}

// UpsertMapping creates or advances a mapping in one statement.
func (q *queries) UpsertMapping(ctx context.Context, m *models.IdentityMapping) (*models.IdentityMapping, error) {
	now := models.NormalizeTime(time.Now())

	remoteID := m.RemoteID
	if remoteID == "" {
		remoteID = uuid.New().String()
	}
	lastSynced := m.LastSynced
	if lastSynced.IsZero() {
		lastSynced = now
	}

	// remote_id назначается один раз, last_synced только растет
	query := `
		INSERT INTO identity_mappings (` + mappingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, entity_type, local_id) DO UPDATE SET
			last_synced = MAX(identity_mappings.last_synced, excluded.last_synced),
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING ` + mappingColumns

	out, err := scanMapping(q.db.QueryRowContext(ctx, query,
		m.TenantID,
		m.EntityType,
		m.LocalID,
		remoteID,
		toMillis(lastSynced),
		m.ContentHash,
		string(m.Status),
		toMillis(now),
		toMillis(now),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return out, nil
}

func scanMapping(row scanner) (*models.IdentityMapping, error) {
	var (
		m                                models.IdentityMapping
		status                           string
		lastSynced, createdAt, updatedAt int64
	)
	err := row.Scan(
		&m.TenantID,
		&m.EntityType,
		&m.LocalID,
		&m.RemoteID,
		&lastSynced,
		&m.ContentHash,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Status = models.SyncStatus(status)
	m.LastSynced = fromMillis(lastSynced)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}
