package models

import "time"

// IdentityMapping bridges a replica's local id and the central store's remote id.
// RemoteID is assigned once; LastSynced only moves forward.
type IdentityMapping struct {
	LastSynced  time.Time  `json:"last_synced"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	TenantID    string     `json:"tenant_id"`
	EntityType  string     `json:"entity_type"`
	LocalID     string     `json:"local_id"`
	RemoteID    string     `json:"remote_id"`
	ContentHash string     `json:"content_hash"`
	Status      SyncStatus `json:"status"`
}

// Record is the central store's current version of a business record.
type Record struct {
	UpdatedAt   time.Time `json:"updated_at"`
	TenantID    string    `json:"tenant_id"`
	EntityType  string    `json:"entity_type"`
	RemoteID    string    `json:"remote_id"`
	LocalID     string    `json:"local_id"`
	ContentHash string    `json:"content_hash"`
	UpdatedBy   string    `json:"updated_by"`
	Payload     Payload   `json:"payload"`
	Deleted     bool      `json:"deleted"`
}

// Tombstone is a durable deletion marker. Once written it is never removed, only marked synced.
type Tombstone struct {
	DeletedAt   time.Time `json:"deleted_at"`
	TenantID    string    `json:"tenant_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	RemoteID    string    `json:"remote_id,omitempty"`
	DeletedBy   string    `json:"deleted_by"`
	LastPayload Payload   `json:"last_payload"`
	Synced      bool      `json:"synced"`
}
