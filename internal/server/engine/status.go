package engine

import (
	"context"
	"fmt"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

// StatusReport aggregates the sync state of a tenant.
type StatusReport struct {
	ByType           storage.StatusCounts
	PendingConflicts int
	FailedEntities   int
}

// Status returns the aggregate sync state of a tenant.
func (e *Engine) Status(ctx context.Context, tenantID string) (*StatusReport, error) {
	counts, err := e.store.CountStatuses(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	pending, err := e.store.CountPendingConflicts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		ByType:           counts,
		PendingConflicts: pending,
		FailedEntities:   counts.Total(models.StatusFailed),
	}, nil
}

// History returns a page of the tenant's audit log.
func (e *Engine) History(ctx context.Context, filter storage.HistoryFilter) ([]*models.HistoryEntry, int, error) {
	entries, total, err := e.store.ListHistory(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	return entries, total, nil
}

// HealthThresholds are the queue depths above which the service reports degraded.
type HealthThresholds struct {
	MaxPendingConflicts int
	MaxFailedEntities   int
}

// HealthReport is the state of the store and its queues across tenants.
type HealthReport struct {
	StoreError       error
	Warnings         []string
	PendingConflicts int
	FailedEntities   int
	StoreUp          bool
}

// Health pings the store and compares queue depths with thresholds.
func (e *Engine) Health(ctx context.Context, th HealthThresholds) *HealthReport {
	report := &HealthReport{}
	if err := e.store.Ping(ctx); err != nil {
		report.StoreError = err
		return report
	}
	report.StoreUp = true

	pending, err := e.store.CountPendingConflicts(ctx, "")
	if err != nil {
		report.Warnings = append(report.Warnings, "conflict count unavailable: "+err.Error())
	}
	report.PendingConflicts = pending

	counts, err := e.store.CountStatuses(ctx, "")
	if err != nil {
		report.Warnings = append(report.Warnings, "status count unavailable: "+err.Error())
	} else {
		report.FailedEntities = counts.Total(models.StatusFailed)
	}

	if th.MaxPendingConflicts > 0 && report.PendingConflicts > th.MaxPendingConflicts {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("pending conflicts %d above threshold %d", report.PendingConflicts, th.MaxPendingConflicts))
	}
	if th.MaxFailedEntities > 0 && report.FailedEntities > th.MaxFailedEntities {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("failed entities %d above threshold %d", report.FailedEntities, th.MaxFailedEntities))
	}
	return report
}
