package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/booksync/internal/conflict"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/engine"
	"github.com/iudanet/booksync/internal/server/storage"
	"github.com/iudanet/booksync/internal/syncerr"
	"github.com/iudanet/booksync/internal/validation"
	"github.com/iudanet/booksync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// TenantIDKey ключ для хранения tenant_id в контексте
	TenantIDKey contextKey = "tenant_id"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetTenantID извлекает tenant_id из контекста запроса
func GetTenantID(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(string)
	return tenantID, ok
}

// SyncService is the engine surface the handlers drive.
type SyncService interface {
	ProcessUpload(ctx context.Context, pkg *models.SyncPackage, actor string, opts engine.UploadOptions) (*models.UploadResult, error)
	ProcessDownload(ctx context.Context, req engine.DownloadRequest) (*engine.DownloadResult, error)
	ResolveConflict(ctx context.Context, req engine.ResolveRequest) (*engine.ResolveResult, error)
	ListConflicts(ctx context.Context, tenantID, entityType string) ([]*models.ConflictRecord, error)
	Status(ctx context.Context, tenantID string) (*engine.StatusReport, error)
	History(ctx context.Context, filter storage.HistoryFilter) ([]*models.HistoryEntry, int, error)
}

// BatchProcessor runs several packages concurrently.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, packages []*models.SyncPackage, actor string, opts engine.BatchOptions) *models.BatchResult
}

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger   *slog.Logger
	service  SyncService
	batch    BatchProcessor
	validate *validator.Validate
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, service SyncService, batch BatchProcessor) *SyncHandler {
	return &SyncHandler{
		logger:   logger,
		service:  service,
		batch:    batch,
		validate: validation.New(),
	}
}

// caller returns the authenticated user and checks that tenantID belongs to the token.
func caller(ctx context.Context, tenantID string) (string, error) {
	userID, ok := GetUserID(ctx)
	if !ok || userID == "" {
		return "", &syncerr.AuthorizationError{Reason: "no authenticated user"}
	}
	claimed, ok := GetTenantID(ctx)
	if !ok || claimed == "" {
		return "", &syncerr.AuthorizationError{Reason: "no tenant in token"}
	}
	if tenantID != "" && tenantID != claimed {
		return "", &syncerr.AuthorizationError{Reason: "tenant does not match token"}
	}
	return userID, nil
}

// checkPackageTenant rejects packages addressed to a tenant other than the caller's.
func checkPackageTenant(tenantID string, pkgs ...*models.SyncPackage) error {
	for _, pkg := range pkgs {
		if pkg != nil && pkg.TenantID != tenantID {
			return &syncerr.AuthorizationError{Reason: "package tenant does not match token"}
		}
	}
	return nil
}

// Upload обрабатывает POST /sync/upload
func (h *SyncHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req api.UploadRequest
	if err := decodeAndValidate(r, w, h.validate, &req); err != nil {
		h.logger.Warn("Invalid upload request", "error", err)
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID, err := caller(ctx, req.TenantID)
	if err == nil {
		err = checkPackageTenant(req.TenantID, req.Package)
	}
	if err != nil {
		h.forbidden(w, err, req.TenantID)
		return
	}

	result, err := h.service.ProcessUpload(ctx, req.Package, userID, engine.UploadOptions{ForceOverwrite: req.ForceOverwrite})
	switch {
	case syncerr.IsValidation(err):
		sendJSON(w, h.logger, result, http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("Upload failed", "error", err, "tenant_id", req.TenantID)
		sendError(w, h.logger, "upload failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Upload processed",
		"tenant_id", req.TenantID,
		"package_id", result.PackageID,
		"client_version", req.ClientVersion,
		"processed", result.Processed,
		"failed", result.Failed,
		"conflicts", result.Conflicted,
	)
	sendJSON(w, h.logger, result, http.StatusOK)
}

// Download обрабатывает POST /sync/download
func (h *SyncHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if err := decodeAndValidate(r, w, h.validate, &req); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID, err := caller(ctx, req.TenantID)
	if err != nil {
		h.forbidden(w, err, req.TenantID)
		return
	}

	res, err := h.service.ProcessDownload(ctx, engine.DownloadRequest{
		TenantID:       req.TenantID,
		UserID:         userID,
		Cursor:         req.SinceCursor,
		EntityTypes:    req.EntityTypes,
		MaxEntities:    req.MaxEntities,
		IncludeDeleted: req.IncludeDeleted,
	})
	switch {
	case syncerr.IsValidation(err):
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("Download failed", "error", err, "tenant_id", req.TenantID)
		sendError(w, h.logger, "download failed", http.StatusInternalServerError)
		return
	}

	sendJSON(w, h.logger, api.DownloadResponse{
		Package:    res.Package,
		HasMore:    res.HasMore,
		NextCursor: res.NextCursor,
	}, http.StatusOK)
}

// Resolve обрабатывает POST /sync/conflicts/resolve
func (h *SyncHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveRequest
	if err := decodeAndValidate(r, w, h.validate, &req); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID, err := caller(ctx, req.TenantID)
	if err != nil {
		h.forbidden(w, err, req.TenantID)
		return
	}

	res, err := h.service.ResolveConflict(ctx, engine.ResolveRequest{
		TenantID:     req.TenantID,
		ConflictID:   req.ConflictID,
		Strategy:     req.Strategy,
		ResolvedData: req.ResolvedData,
		Actor:        userID,
	})
	if err != nil {
		h.sendResolveError(w, err, req.ConflictID)
		return
	}

	sendJSON(w, h.logger, api.ResolveResponse{Conflict: res.Conflict, Entity: res.Entity}, http.StatusOK)
}

func (h *SyncHandler) sendResolveError(w http.ResponseWriter, err error, conflictID string) {
	var mergeErr *conflict.MergeError
	switch {
	case errors.Is(err, storage.ErrConflictNotFound):
		sendError(w, h.logger, "conflict not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrConflictAlreadyResolved):
		sendError(w, h.logger, "conflict already resolved", http.StatusConflict)
	case errors.As(err, &mergeErr), errors.Is(err, conflict.ErrManualResolutionRequired):
		sendError(w, h.logger, err.Error(), http.StatusUnprocessableEntity)
	case syncerr.IsValidation(err):
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Resolve failed", "error", err, "conflict_id", conflictID)
		sendError(w, h.logger, "resolve failed", http.StatusInternalServerError)
	}
}

// Conflicts обрабатывает GET /sync/conflicts?entity_type=
func (h *SyncHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := caller(ctx, ""); err != nil {
		h.forbidden(w, err, "")
		return
	}
	tenantID, _ := GetTenantID(ctx)

	entityType := r.URL.Query().Get("entity_type")
	if entityType != "" {
		if err := validation.ValidateEntityType(entityType); err != nil {
			sendError(w, h.logger, err.Error(), http.StatusBadRequest)
			return
		}
	}

	conflicts, err := h.service.ListConflicts(ctx, tenantID, entityType)
	if err != nil {
		h.logger.Error("Failed to list conflicts", "error", err, "tenant_id", tenantID)
		sendError(w, h.logger, "failed to list conflicts", http.StatusInternalServerError)
		return
	}

	sendJSON(w, h.logger, api.ConflictsResponse{Conflicts: conflicts, Total: len(conflicts)}, http.StatusOK)
}

// Batch обрабатывает POST /sync/batch
func (h *SyncHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req api.BatchRequest
	if err := decodeAndValidate(r, w, h.validate, &req); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID, err := caller(ctx, req.TenantID)
	if err == nil {
		err = checkPackageTenant(req.TenantID, req.Packages...)
	}
	if err != nil {
		h.forbidden(w, err, req.TenantID)
		return
	}

	result := h.batch.ProcessBatch(ctx, req.Packages, userID, engine.BatchOptions{
		MaxConcurrency:  req.MaxConcurrency,
		ContinueOnError: req.ContinueOnError,
		ForceOverwrite:  req.ForceOverwrite,
	})

	h.logger.Info("Batch processed",
		"tenant_id", req.TenantID,
		"total", result.TotalPackages,
		"failed", result.FailedPackages,
	)
	sendJSON(w, h.logger, result, http.StatusOK)
}

// History обрабатывает POST /sync/history
func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	var req api.HistoryRequest
	if err := decodeAndValidate(r, w, h.validate, &req); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := caller(ctx, req.TenantID); err != nil {
		h.forbidden(w, err, req.TenantID)
		return
	}
	if req.FromDate != nil && req.ToDate != nil && req.ToDate.Before(*req.FromDate) {
		sendError(w, h.logger, "to_date is before from_date", http.StatusBadRequest)
		return
	}

	filter := storage.HistoryFilter{
		TenantID:    req.TenantID,
		From:        req.FromDate,
		To:          req.ToDate,
		EntityTypes: req.EntityTypes,
		Page:        req.Page,
		PageSize:    req.PageSize,
	}
	entries, total, err := h.service.History(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to list history", "error", err, "tenant_id", req.TenantID)
		sendError(w, h.logger, "failed to list history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}

	sendJSON(w, h.logger, api.HistoryResponse{
		Entries:  entries,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, http.StatusOK)
}

// Status обрабатывает GET /sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := caller(ctx, ""); err != nil {
		h.forbidden(w, err, "")
		return
	}
	tenantID, _ := GetTenantID(ctx)

	report, err := h.service.Status(ctx, tenantID)
	if err != nil {
		h.logger.Error("Failed to get status", "error", err, "tenant_id", tenantID)
		sendError(w, h.logger, "failed to get status", http.StatusInternalServerError)
		return
	}

	sendJSON(w, h.logger, api.StatusResponse{
		TenantID:         tenantID,
		ByType:           report.ByType,
		PendingConflicts: report.PendingConflicts,
		FailedEntities:   report.FailedEntities,
	}, http.StatusOK)
}

func (h *SyncHandler) forbidden(w http.ResponseWriter, err error, tenantID string) {
	h.logger.Warn("Request rejected", "error", err, "tenant_id", tenantID)
	sendError(w, h.logger, err.Error(), http.StatusForbidden)
}
