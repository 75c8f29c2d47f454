// Package api holds the JSON envelopes exchanged between the sync client and server.
package api

import (
	"time"

	"github.com/iudanet/booksync/internal/models"
)

// UploadRequest представляет запрос на загрузку пакета изменений
type UploadRequest struct {
	Package        *models.SyncPackage `json:"package" validate:"required"`
	TenantID       string              `json:"tenant_id" validate:"required,tenantid"`
	ClientVersion  string              `json:"client_version,omitempty"`
	ForceOverwrite bool                `json:"force_overwrite,omitempty"`
}

// UploadResponse is the per-package result of an upload.
type UploadResponse = models.UploadResult

// DownloadRequest представляет запрос на получение изменений с сервера
type DownloadRequest struct {
	TenantID       string   `json:"tenant_id" validate:"required,tenantid"`
	SinceCursor    string   `json:"since_cursor,omitempty"`
	EntityTypes    []string `json:"entity_types,omitempty" validate:"omitempty,dive,entitytype"`
	MaxEntities    int      `json:"max_entities,omitempty" validate:"gte=0"`
	IncludeDeleted bool     `json:"include_deleted,omitempty"`
}

// DownloadResponse carries one page of server changes.
type DownloadResponse struct {
	Package    *models.SyncPackage `json:"package"`
	NextCursor string              `json:"next_cursor"`
	HasMore    bool                `json:"has_more"`
}

// ResolveRequest представляет запрос на разрешение конфликта
type ResolveRequest struct {
	ResolvedData *models.Payload `json:"resolved_data,omitempty"`
	ConflictID   string          `json:"conflict_id" validate:"required"`
	TenantID     string          `json:"tenant_id" validate:"required,tenantid"`
	Strategy     models.Strategy `json:"strategy" validate:"required,oneof=local_wins remote_wins last_modified_wins field_merge manual"`
}

// ResolveResponse returns the resolved conflict and the entity as written to the central store.
type ResolveResponse struct {
	Conflict *models.ConflictRecord `json:"conflict"`
	Entity   models.SyncEntity      `json:"entity"`
}

// ConflictsResponse lists pending conflicts of a tenant.
type ConflictsResponse struct {
	Conflicts []*models.ConflictRecord `json:"conflicts"`
	Total     int                      `json:"total"`
}

// BatchRequest представляет запрос на пакетную загрузку
type BatchRequest struct {
	TenantID        string                `json:"tenant_id" validate:"required,tenantid"`
	Packages        []*models.SyncPackage `json:"packages" validate:"required,min=1,dive,required"`
	MaxConcurrency  int                   `json:"max_concurrency,omitempty" validate:"gte=0"`
	ContinueOnError bool                  `json:"continue_on_error,omitempty"`
	ForceOverwrite  bool                  `json:"force_overwrite,omitempty"`
}

// BatchResponse is the aggregate result of a batch, results in input order.
type BatchResponse = models.BatchResult

// HistoryRequest представляет запрос истории синхронизации
type HistoryRequest struct {
	FromDate    *time.Time `json:"from_date,omitempty"`
	ToDate      *time.Time `json:"to_date,omitempty"`
	TenantID    string     `json:"tenant_id" validate:"required,tenantid"`
	EntityTypes []string   `json:"entity_types,omitempty" validate:"omitempty,dive,entitytype"`
	Page        int        `json:"page,omitempty" validate:"gte=0"`
	PageSize    int        `json:"page_size,omitempty" validate:"gte=0,lte=500"`
}

// HistoryResponse is one page of history entries, newest first.
type HistoryResponse struct {
	Entries  []*models.HistoryEntry `json:"entries"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

// StatusResponse summarizes the sync state of a tenant.
type StatusResponse struct {
	ByType           map[string]map[models.SyncStatus]int `json:"by_type"`
	TenantID         string                               `json:"tenant_id"`
	PendingConflicts int                                  `json:"pending_conflicts"`
	FailedEntities   int                                  `json:"failed_entities"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status           string   `json:"status"`
	Version          string   `json:"version,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	PendingConflicts int      `json:"pending_conflicts"`
	FailedEntities   int      `json:"failed_entities"`
	StoreUp          bool     `json:"store_up"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
