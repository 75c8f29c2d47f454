package models

import (
	"encoding/json"
	"time"
)

// Strategy names a conflict resolution strategy.
type Strategy string

const (
	StrategyLocalWins        Strategy = "local_wins"
	StrategyRemoteWins       Strategy = "remote_wins"
	StrategyLastModifiedWins Strategy = "last_modified_wins"
	StrategyFieldMerge       Strategy = "field_merge"
	StrategyManual           Strategy = "manual"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLocalWins, StrategyRemoteWins, StrategyLastModifiedWins, StrategyFieldMerge, StrategyManual:
		return true
	}
	return false
}

// ConflictStatus is the lifecycle state of a ConflictRecord.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// FieldConflictKind describes how a single field diverged.
type FieldConflictKind string

const (
	FieldLocalChanged  FieldConflictKind = "local_changed"
	FieldRemoteChanged FieldConflictKind = "remote_changed"
	FieldBothChanged   FieldConflictKind = "both_changed"
)

// FieldConflict is a per-field divergence between local, remote and base versions.
// Absent values are nil.
type FieldConflict struct {
	Field       string            `json:"field"`
	Kind        FieldConflictKind `json:"kind"`
	LocalValue  json.RawMessage   `json:"local_value,omitempty"`
	RemoteValue json.RawMessage   `json:"remote_value,omitempty"`
	BaseValue   json.RawMessage   `json:"base_value,omitempty"`
}

// ConflictRecord is a change that could not be applied because the central store moved past
// what the replica had observed. It moves from pending to resolved exactly once.
type ConflictRecord struct {
	DetectedAt      time.Time       `json:"detected_at"`
	LocalTimestamp  time.Time       `json:"local_timestamp"`
	RemoteTimestamp time.Time       `json:"remote_timestamp"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	RemoteData      *Payload        `json:"remote_data,omitempty"`
	BaseData        *Payload        `json:"base_data,omitempty"`
	Resolution      *Payload        `json:"resolution,omitempty"`
	ConflictID      string          `json:"conflict_id"`
	TenantID        string          `json:"tenant_id"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	RemoteID        string          `json:"remote_id"`
	Fingerprint     string          `json:"fingerprint"`
	ResolvedBy      string          `json:"resolved_by,omitempty"`
	Operation       Operation       `json:"operation"`
	Strategy        Strategy        `json:"strategy"`
	Status          ConflictStatus  `json:"status"`
	LocalData       Payload         `json:"local_data"`
	FieldConflicts  []FieldConflict `json:"field_conflicts,omitempty"`
	// RemoteDeleted is set when the central record was deleted; RemoteData then holds its last state.
	RemoteDeleted bool `json:"remote_deleted,omitempty"`
}

// UnresolvedFields returns the names of fields changed on both sides.
func (c *ConflictRecord) UnresolvedFields() []string {
	var fields []string
	for _, fc := range c.FieldConflicts {
		if fc.Kind == FieldBothChanged {
			fields = append(fields, fc.Field)
		}
	}
	return fields
}
