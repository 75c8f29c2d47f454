package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

const defaultHistoryPageSize = 50

// AppendHistory inserts an audit entry.
func (q *queries) AppendHistory(ctx context.Context, e *models.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO history (id, tenant_id, operation, entity_type, entity_id, outcome, actor, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		e.ID,
		e.TenantID,
		e.Operation,
		e.EntityType,
		e.EntityID,
		e.Outcome,
		e.Actor,
		e.Details,
		toMillis(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	for _, t := range e.EntityTypes {
		_, err := q.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO history_types (history_id, entity_type) VALUES (?, ?)`, e.ID, t)
		if err != nil {
			return fmt.Errorf("failed to append history type: %w", err)
		}
	}
	return nil
}

// ListHistory returns one page of entries matching filter, newest first.
func (q *queries) ListHistory(ctx context.Context, filter storage.HistoryFilter) (result []*models.HistoryEntry, total int, err error) {
	where := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}

	if filter.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, toMillis(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, toMillis(*filter.To))
	}
	if len(filter.EntityTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.EntityTypes)), ",")
		// запись пакета совпадает по любому из затронутых типов
		where = append(where, "(entity_type IN ("+placeholders+") OR id IN (SELECT history_id FROM history_types WHERE entity_type IN ("+placeholders+")))")
		for range 2 {
			for _, t := range filter.EntityTypes {
				args = append(args, t)
			}
		}
	}
	cond := strings.Join(where, " AND ")

	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := `SELECT id, tenant_id, operation, entity_type, entity_id, outcome, actor, details, timestamp,
		(SELECT GROUP_CONCAT(ht.entity_type) FROM history_types ht WHERE ht.history_id = history.id)
		FROM history WHERE ` + cond + `
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`

	rows, err := q.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		var (
			e     models.HistoryEntry
			ts    int64
			types sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Operation, &e.EntityType, &e.EntityID,
			&e.Outcome, &e.Actor, &e.Details, &ts, &types); err != nil {
			return nil, 0, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		if types.Valid && types.String != "" {
			e.EntityTypes = strings.Split(types.String, ",")
			slices.Sort(e.EntityTypes)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating history: %w", err)
	}

	return result, total, nil
}
