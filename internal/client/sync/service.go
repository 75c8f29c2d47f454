// Package sync moves the replica's change ledger to the sync server and applies server changes
// back to the local replica.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/clock"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/pkg/api"
)

const (
	// DefaultMaxPackageEntries bounds the entities sealed into one package.
	DefaultMaxPackageEntries = 500
	// DefaultPageSize is the max_entities asked for on each download.
	DefaultPageSize = 500
	// DefaultPullRetries is how many times a failed download page is retried.
	DefaultPullRetries = 3
	// DefaultPullRetryBase is the first delay between download retries.
	DefaultPullRetryBase = 500 * time.Millisecond
)

//go:generate moq -out api_mock_test.go . API

// API is the part of the sync server the service talks to.
type API interface {
	Upload(ctx context.Context, req api.UploadRequest) (*api.UploadResponse, error)
	Download(ctx context.Context, req api.DownloadRequest) (*api.DownloadResponse, error)
	Conflicts(ctx context.Context, entityType string) (*api.ConflictsResponse, error)
	Resolve(ctx context.Context, req api.ResolveRequest) (*api.ResolveResponse, error)
	Status(ctx context.Context) (*api.StatusResponse, error)
}

// Config identifies the replica and tunes package and page sizes.
type Config struct {
	TenantID          string
	UserID            string
	EntityTypes       []string // пусто = все типы
	MaxPackageEntries int
	PageSize          int
	PullRetries       uint64
	PullRetryBase     time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxPackageEntries <= 0 {
		c.MaxPackageEntries = DefaultMaxPackageEntries
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PullRetries == 0 {
		c.PullRetries = DefaultPullRetries
	}
	if c.PullRetryBase <= 0 {
		c.PullRetryBase = DefaultPullRetryBase
	}
}

// Service handles synchronization between client and server
type Service struct {
	api    API
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	clock  *clock.Clock // метки LocalTimestamp
	cfg    Config
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new sync service
func NewService(apiClient API, store storage.Store, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	cfg.setDefaults()
	s := &Service{
		api:    apiClient,
		store:  store,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.New(s.now)
	return s
}

// Record appends a local change to the ledger.
func (s *Service) Record(ctx context.Context, entityType, localID string, op models.Operation, payload models.Payload) (uint64, error) {
	seq, err := s.store.RecordChange(ctx, &storage.Change{
		EntityType:     entityType,
		LocalID:        localID,
		Operation:      op,
		Payload:        payload,
		LocalTimestamp: s.clock.Now(),
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("Change recorded",
		"seq", seq,
		"entity_type", entityType,
		"local_id", localID,
		"operation", op)
	return seq, nil
}

// SyncResult contains sync operation results
type SyncResult struct {
	Push *PushResult
	Pull *PullResult
}

// Sync pushes local changes and then pulls server changes.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	s.logger.Info("Starting synchronization", "tenant_id", s.cfg.TenantID)

	push, err := s.Push(ctx)
	if err != nil {
		return &SyncResult{Push: push}, fmt.Errorf("push failed: %w", err)
	}
	pull, err := s.Pull(ctx)
	if err != nil {
		return &SyncResult{Push: push, Pull: pull}, fmt.Errorf("pull failed: %w", err)
	}

	if err := s.store.SaveLastSyncTime(ctx, s.now()); err != nil {
		// Не прерываем синхронизацию из-за ошибки сохранения времени
		s.logger.Warn("Failed to save last sync time", "error", err)
	}

	s.logger.Info("Synchronization completed",
		"sealed", push.Sealed,
		"uploaded", push.Uploaded,
		"conflicts", push.Conflicts,
		"retrying", push.Retrying,
		"pulled", pull.Applied,
		"deferred", pull.Deferred)

	return &SyncResult{Push: push, Pull: pull}, nil
}

// StatusReport is the local view of sync state, optionally with the server's.
type StatusReport struct {
	LastSync           time.Time
	Remote             *api.StatusResponse
	Ledger             map[models.SyncStatus]int
	RemoteError        string
	Cursor             string
	QueueDepth         int
	DeadLetters        int
	UnsyncedTombstones int
}

// Status returns ledger counts, queue depth and, when remote is set, the server summary.
// A server failure is reported in RemoteError, not as an error.
func (s *Service) Status(ctx context.Context, remote bool) (*StatusReport, error) {
	counts, err := s.store.CountChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count changes: %w", err)
	}
	items, err := s.store.QueueItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	tombstones, err := s.store.ListTombstones(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstones: %w", err)
	}
	cursor, err := s.store.GetCursor(ctx)
	if err != nil {
		return nil, err
	}
	lastSync, err := s.store.GetLastSyncTime(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Ledger:             counts,
		Cursor:             cursor,
		LastSync:           lastSync,
		UnsyncedTombstones: len(tombstones),
	}
	for _, item := range items {
		if item.Dead {
			report.DeadLetters++
		} else {
			report.QueueDepth++
		}
	}

	if remote {
		resp, err := s.api.Status(ctx)
		if err != nil {
			report.RemoteError = err.Error()
		} else {
			report.Remote = resp
		}
	}
	return report, nil
}

// RetryFailed returns failed ledger entries to pending so the next push sends them again.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	failed, err := s.store.ChangesByStatus(ctx, models.StatusFailed)
	if err != nil {
		return 0, err
	}
	if len(failed) == 0 {
		return 0, nil
	}
	updates := make([]storage.ChangeUpdate, 0, len(failed))
	for _, c := range failed {
		updates = append(updates, storage.ChangeUpdate{Seq: c.Seq, Status: models.StatusPending})
	}
	if err := s.store.UpdateChanges(ctx, updates); err != nil {
		return 0, err
	}
	s.logger.Info("Failed changes queued again", "count", len(updates))
	return len(updates), nil
}

// applyServerEntity writes a server-confirmed version of an entity to the identity cache and replica.
func (s *Service) applyServerEntity(ctx context.Context, ent *models.SyncEntity) error {
	if ent.RemoteTimestamp != nil {
		// правки после получения версии должны быть новее нее
		s.clock.Observe(*ent.RemoteTimestamp)
		err := s.store.PutIdentity(ctx, &storage.Identity{
			EntityType:  ent.EntityType,
			LocalID:     ent.LocalID,
			RemoteID:    ent.RemoteID,
			LastSynced:  *ent.RemoteTimestamp,
			ContentHash: ent.ContentHash,
		})
		if err != nil {
			return fmt.Errorf("failed to update identity: %w", err)
		}
	}

	rec, err := s.store.GetRecord(ctx, ent.EntityType, ent.LocalID)
	if err != nil {
		if !errors.Is(err, storage.ErrRecordNotFound) {
			return err
		}
		rec = &storage.ReplicaRecord{EntityType: ent.EntityType, LocalID: ent.LocalID}
	}
	synced := ent.Payload.Clone()
	rec.RemoteID = ent.RemoteID
	rec.Payload = ent.Payload.Clone()
	rec.SyncedPayload = &synced
	rec.Deleted = ent.Operation == models.OperationDelete
	rec.UpdatedAt = s.now().UTC()
	if ent.RemoteTimestamp != nil {
		rec.UpdatedAt = *ent.RemoteTimestamp
	}
	if err := s.store.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to update replica: %w", err)
	}

	if rec.Deleted {
		return s.store.MarkTombstoneSynced(ctx, ent.EntityType, ent.LocalID)
	}
	return nil
}
