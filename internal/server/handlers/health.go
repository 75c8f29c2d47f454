package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/booksync/internal/server/engine"
	"github.com/iudanet/booksync/pkg/api"
)

// Статусы health check
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// HealthChecker reports store reachability and queue depths.
type HealthChecker interface {
	Health(ctx context.Context, th engine.HealthThresholds) *engine.HealthReport
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger     *slog.Logger
	checker    HealthChecker
	version    string
	thresholds engine.HealthThresholds
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, checker HealthChecker, version string, th engine.HealthThresholds) *HealthHandler {
	return &HealthHandler{
		logger:     logger,
		checker:    checker,
		version:    version,
		thresholds: th,
	}
}

// Health обрабатывает GET /sync/health
// Не требует аутентификации, возвращает 503 если хранилище недоступно
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Health(r.Context(), h.thresholds)

	resp := api.HealthResponse{
		Status:           HealthOK,
		Version:          h.version,
		Warnings:         report.Warnings,
		PendingConflicts: report.PendingConflicts,
		FailedEntities:   report.FailedEntities,
		StoreUp:          report.StoreUp,
	}

	code := http.StatusOK
	switch {
	case !report.StoreUp:
		resp.Status = HealthDown
		code = http.StatusServiceUnavailable
		h.logger.Error("health check: store unavailable", slog.Any("error", report.StoreError))
	case len(report.Warnings) > 0:
		resp.Status = HealthDegraded
	}

	sendJSON(w, h.logger, resp, code)
}
