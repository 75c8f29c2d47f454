package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/booksync/internal/server/config"
	"github.com/iudanet/booksync/internal/server/engine"
	"github.com/iudanet/booksync/internal/server/handlers"
	"github.com/iudanet/booksync/internal/server/middleware"
)

const healthPath = "/sync/health"

// newRouter собирает маршруты. cleanup останавливает фоновые горутины rate limiter.
func newRouter(cfg *config.Config, logger *slog.Logger, eng *engine.Engine, orch *engine.Orchestrator) (http.Handler, func()) {
	syncHandler := handlers.NewSyncHandler(logger, eng, orch)
	healthHandler := handlers.NewHealthHandler(logger, eng, Version, engine.HealthThresholds{
		MaxPendingConflicts: cfg.Health.MaxPendingConflicts,
		MaxFailedEntities:   cfg.Health.MaxFailedEntities,
	})

	r := mux.NewRouter()
	r.Use(middleware.LoggingWithSkip(logger, []string{healthPath}))
	r.Use(middleware.RecoveryMiddleware(logger))

	// health без аутентификации, регистрируется до /sync subrouter
	r.HandleFunc(healthPath, healthHandler.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/sync").Subrouter()
	api.Use(middleware.AuthMiddleware(logger, jwtConfig(cfg)))

	cleanup := func() {}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewPathRateLimiter([]middleware.PathRateLimit{
			{Path: "/sync/batch", Rate: cfg.RateLimit.BatchRequestsPerMinute, Window: time.Minute},
		}, cfg.RateLimit.RequestsPerMinute, time.Minute, logger)
		api.Use(limiter.Middleware)
		cleanup = limiter.Stop
	}

	api.HandleFunc("/upload", syncHandler.Upload).Methods(http.MethodPost)
	api.HandleFunc("/download", syncHandler.Download).Methods(http.MethodPost)
	api.HandleFunc("/conflicts", syncHandler.Conflicts).Methods(http.MethodGet)
	api.HandleFunc("/conflicts/resolve", syncHandler.Resolve).Methods(http.MethodPost)
	api.HandleFunc("/batch", syncHandler.Batch).Methods(http.MethodPost)
	api.HandleFunc("/history", syncHandler.History).Methods(http.MethodPost)
	api.HandleFunc("/status", syncHandler.Status).Methods(http.MethodGet)

	return r, cleanup
}
