package models

import "time"

// ErrorKind classifies errors reported to sync callers.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindProcessing    ErrorKind = "processing"
	ErrorKindTransport     ErrorKind = "transport"
	ErrorKindAuthorization ErrorKind = "authorization"
)

// SyncError is the typed error entry carried by every sync response.
type SyncError struct {
	Kind       ErrorKind `json:"kind"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Message    string    `json:"message"`
}

// EntityOutcome reports what happened to one uploaded entity.
type EntityOutcome struct {
	LastSynced *time.Time `json:"last_synced,omitempty"`
	EntityType string     `json:"entity_type"`
	LocalID    string     `json:"local_id"`
	RemoteID   string     `json:"remote_id,omitempty"`
	ConflictID string     `json:"conflict_id,omitempty"`
	Status     SyncStatus `json:"status"`
}

// UploadResult summarizes the processing of one package.
type UploadResult struct {
	SyncID     string           `json:"sync_id"`
	PackageID  string           `json:"package_id"`
	Errors     []SyncError      `json:"errors"`
	Conflicts  []ConflictRecord `json:"conflicts"`
	Outcomes   []EntityOutcome  `json:"outcomes"`
	Processed  int              `json:"processed_count"`
	Successful int              `json:"success_count"`
	Failed     int              `json:"failed_count"`
	Conflicted int              `json:"conflict_count"`
	Skipped    int              `json:"skipped_count"`
	Success    bool             `json:"success"`
	Cancelled  bool             `json:"cancelled"`
}

// BatchResult aggregates the independent results of a batch of packages.
type BatchResult struct {
	Results            []UploadResult `json:"results"`
	TotalPackages      int            `json:"total_packages"`
	SuccessfulPackages int            `json:"successful_packages"`
	FailedPackages     int            `json:"failed_packages"`
	Success            bool           `json:"success"`
}
