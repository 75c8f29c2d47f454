package models

import "time"

// SyncStatus is the per-entity state of a change on its way to the central store.
type SyncStatus string

const (
	StatusPending    SyncStatus = "pending"
	StatusInProgress SyncStatus = "in_progress"
	StatusSuccess    SyncStatus = "success"
	StatusFailed     SyncStatus = "failed"
	StatusConflict   SyncStatus = "conflict"
	StatusSkipped    SyncStatus = "skipped"
)

// allowed transitions of the per-entity state machine
var statusTransitions = map[SyncStatus][]SyncStatus{
	StatusPending:    {StatusInProgress, StatusSkipped},
	StatusInProgress: {StatusSuccess, StatusConflict, StatusFailed, StatusSkipped},
	StatusFailed:     {StatusInProgress},
	StatusConflict:   {StatusSuccess},
}

// CanTransition reports whether a change may move from one status to another.
func CanTransition(from, to SyncStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the life of a change.
// A later local edit creates a new change instead of reviving a terminal one.
func (s SyncStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusSkipped
}

// SyncStatusRecord drives retry decisions and the status endpoint.
type SyncStatusRecord struct {
	LastAttempt  time.Time  `json:"last_attempt"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	TenantID     string     `json:"tenant_id"`
	EntityType   string     `json:"entity_type"`
	EntityID     string     `json:"entity_id"`
	Status       SyncStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AttemptCount int        `json:"attempt_count"`
}
