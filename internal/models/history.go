package models

import "time"

// History operations.
const (
	HistoryUpload   = "upload"
	HistoryDownload = "download"
	HistoryResolve  = "resolve"
	HistoryBatch    = "batch"
)

// History outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// HistoryEntry is an append-only audit record.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	// EntityTypes lists every type an upload package touched.
	EntityTypes []string `json:"entity_types,omitempty"`
	ID          string   `json:"id"`
	TenantID    string   `json:"tenant_id"`
	Operation   string   `json:"operation"`
	EntityType  string   `json:"entity_type,omitempty"`
	EntityID    string   `json:"entity_id,omitempty"`
	Outcome     string   `json:"outcome"`
	Actor       string   `json:"actor"`
	Details     string   `json:"details,omitempty"`
}
