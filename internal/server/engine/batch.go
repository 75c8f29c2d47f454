package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
)

// DefaultBatchConcurrency is used when a batch does not ask for a concurrency bound.
const DefaultBatchConcurrency = 5

//go:generate moq -out uploader_mock_test.go . Uploader

// Uploader processes one package.
type Uploader interface {
	ProcessUpload(ctx context.Context, pkg *models.SyncPackage, actor string, opts UploadOptions) (*models.UploadResult, error)
}

// BatchOptions tune a batch.
type BatchOptions struct {
	MaxConcurrency  int
	ContinueOnError bool
	ForceOverwrite  bool
}

// Orchestrator runs several packages concurrently with a bound on in-flight uploads.
type Orchestrator struct {
	uploader       Uploader
	logger         *slog.Logger
	maxConcurrency int
}

// NewOrchestrator creates an orchestrator. maxConcurrency caps what a batch may request.
func NewOrchestrator(uploader Uploader, maxConcurrency int, logger *slog.Logger) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultBatchConcurrency
	}
	return &Orchestrator{uploader: uploader, maxConcurrency: maxConcurrency, logger: logger}
}

// ProcessBatch uploads every package and returns their results in input order.
// One package failing never cancels the others.
func (o *Orchestrator) ProcessBatch(ctx context.Context, packages []*models.SyncPackage, actor string, opts BatchOptions) *models.BatchResult {
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}
	if limit > o.maxConcurrency {
		limit = o.maxConcurrency
	}

	results := make([]models.UploadResult, len(packages))
	sem := semaphore.NewWeighted(int64(limit))

	var wg sync.WaitGroup
	for i, pkg := range packages {
		if err := sem.Acquire(ctx, 1); err != nil {
			// контекст отменен, оставшиеся пакеты не запускаем
			for j := i; j < len(packages); j++ {
				results[j] = cancelledResult(packages[j], err)
			}
			break
		}

		wg.Add(1)
		go func(i int, pkg *models.SyncPackage) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = o.uploadOne(ctx, pkg, actor, opts)
		}(i, pkg)
	}
	wg.Wait()

	batch := &models.BatchResult{
		Results:       results,
		TotalPackages: len(packages),
	}
	for _, r := range results {
		if r.Success {
			batch.SuccessfulPackages++
		} else {
			batch.FailedPackages++
		}
	}
	batch.Success = batch.FailedPackages == 0 || opts.ContinueOnError

	o.logger.Info("batch processed",
		slog.Int("total", batch.TotalPackages),
		slog.Int("successful", batch.SuccessfulPackages),
		slog.Int("failed", batch.FailedPackages),
		slog.Int("concurrency", limit),
	)
	return batch
}

func (o *Orchestrator) uploadOne(ctx context.Context, pkg *models.SyncPackage, actor string, opts BatchOptions) (result models.UploadResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while processing package", slog.Any("panic", r))
			result = failedResult(pkg, &syncerr.ProcessingError{Err: errPanic})
		}
	}()

	res, err := o.uploader.ProcessUpload(ctx, pkg, actor, UploadOptions{ForceOverwrite: opts.ForceOverwrite})
	if res == nil {
		return failedResult(pkg, err)
	}
	// ошибка валидации уже отражена в результате
	return *res
}

func failedResult(pkg *models.SyncPackage, err error) models.UploadResult {
	r := models.UploadResult{
		Errors:    []models.SyncError{},
		Conflicts: []models.ConflictRecord{},
		Outcomes:  []models.EntityOutcome{},
	}
	if pkg != nil {
		r.PackageID = pkg.PackageID
	}
	if err != nil {
		r.Errors = append(r.Errors, syncerr.ToSyncError(err))
	}
	return r
}

func cancelledResult(pkg *models.SyncPackage, err error) models.UploadResult {
	r := failedResult(pkg, err)
	r.Cancelled = true
	return r
}
