package models

import (
	"bytes"
	"time"
)

// ProtocolVersion is the version of the sync package format produced by this build.
const ProtocolVersion = "1"

// Business entity types known to the central store.
const (
	EntityTypeAccount     = "Account"
	EntityTypeCustomer    = "Customer"
	EntityTypeVendor      = "Vendor"
	EntityTypeTransaction = "Transaction"
	EntityTypeInvoice     = "Invoice"
	EntityTypeBill        = "Bill"
	EntityTypePayment     = "Payment"
	EntityTypeBudget      = "Budget"
	EntityTypeCashFlow    = "CashFlow"
)

// SupportedEntityTypes is the fixed order in which entity types are served on download.
var SupportedEntityTypes = []string{
	EntityTypeAccount,
	EntityTypeCustomer,
	EntityTypeVendor,
	EntityTypeTransaction,
	EntityTypeInvoice,
	EntityTypeBill,
	EntityTypePayment,
	EntityTypeBudget,
	EntityTypeCashFlow,
}

// Operation is the kind of mutation a SyncEntity carries.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationUpdate  Operation = "update"
	OperationDelete  Operation = "delete"
	OperationRestore Operation = "restore"
)

// Valid reports whether o is one of the known operations.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRestore:
		return true
	}
	return false
}

// Payload is a serialized business record together with the schema version it was written with.
// Data is opaque to the sync engine; only entity handlers interpret it.
type Payload struct {
	Data          []byte `json:"data"`
	SchemaVersion int    `json:"schema_version"`
}

// IsEmpty reports whether the payload carries no data.
func (p Payload) IsEmpty() bool {
	return len(p.Data) == 0
}

// Equal compares schema version and bytes.
func (p Payload) Equal(other Payload) bool {
	return p.SchemaVersion == other.SchemaVersion && bytes.Equal(p.Data, other.Data)
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return Payload{Data: data, SchemaVersion: p.SchemaVersion}
}

// SyncEntity is one change to one business record as it travels between a replica and the central store.
type SyncEntity struct {
	LocalTimestamp time.Time `json:"local_timestamp"` // LocalTimestamp время изменения на реплике
	// RemoteTimestamp is the central-store watermark the replica last observed for this entity.
	// Nil means the entity was never synced from this replica.
	RemoteTimestamp *time.Time `json:"remote_timestamp,omitempty"`
	BasePayload     *Payload   `json:"base_payload,omitempty"` // BasePayload снимок, с которым работала реплика
	// ReceivedAt is stamped by the server when the entity is accepted for processing.
	ReceivedAt  time.Time  `json:"-"`
	LocalID     string     `json:"local_id"`
	RemoteID    string     `json:"remote_id,omitempty"`
	EntityType  string     `json:"entity_type"`
	TenantID    string     `json:"tenant_id,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
	Operation   Operation  `json:"operation"`
	Status      SyncStatus `json:"status,omitempty"`
	Payload     Payload    `json:"payload"`
}

// ChangeSet groups the changes of one entity type inside a package, in application order.
type ChangeSet struct {
	LastModified time.Time    `json:"last_modified"`
	EntityType   string       `json:"entity_type"`
	Entities     []SyncEntity `json:"entities"`
}

// SyncPackage is the transport unit exchanged between replicas and the central store.
type SyncPackage struct {
	Timestamp       time.Time   `json:"timestamp"`
	PackageID       string      `json:"package_id"`
	TenantID        string      `json:"tenant_id"`
	UserID          string      `json:"user_id"`
	ProtocolVersion string      `json:"protocol_version"`
	Checksum        string      `json:"checksum"`
	ChangeSets      []ChangeSet `json:"change_sets"`
}

// EntityCount returns the number of entities across all change-sets.
func (p *SyncPackage) EntityCount() int {
	n := 0
	for _, cs := range p.ChangeSets {
		n += len(cs.Entities)
	}
	return n
}

// Entities flattens the change-sets preserving their order.
func (p *SyncPackage) Entities() []SyncEntity {
	out := make([]SyncEntity, 0, p.EntityCount())
	for _, cs := range p.ChangeSets {
		out = append(out, cs.Entities...)
	}
	return out
}

// Timestamp precision of the central store.
const TimePrecision = time.Millisecond

// NormalizeTime converts t to UTC at store precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(TimePrecision)
}

// MaxTime returns the later of a and b.
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
