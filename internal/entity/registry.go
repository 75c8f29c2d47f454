// Package entity maps entity type identifiers to typed handlers that know how to validate,
// decompose and write one kind of business record. Adding an entity type is a registration.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/iudanet/booksync/internal/models"
)

var (
	// ErrUnknownEntityType is returned when no handler is registered for a type.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrUnsupportedSchema is returned for payloads written with a schema version the handler does not know.
	ErrUnsupportedSchema = errors.New("unsupported schema version")

	// ErrInvalidPayload is returned for payloads that are not valid records of the type.
	ErrInvalidPayload = errors.New("invalid payload")
)

// RecordWriter is the part of the central store a handler writes through.
// Implementations run inside the caller's transaction.
type RecordWriter interface {
	GetRecord(ctx context.Context, tenantID, entityType, remoteID string) (*models.Record, error)
	PutRecord(ctx context.Context, rec *models.Record) error
	DeleteRecord(ctx context.Context, rec *models.Record, deletedBy string) error
}

// Handler knows one entity type.
type Handler interface {
	EntityType() string

	// Serialize validates payload for op and returns the form stored centrally.
	Serialize(payload models.Payload, op models.Operation) (models.Payload, error)

	// Fields decomposes a payload into top-level fields for its schema version.
	Fields(payload models.Payload) (map[string]json.RawMessage, error)

	// Compose builds a payload of the given schema version from fields.
	Compose(fields map[string]json.RawMessage, schemaVersion int) (models.Payload, error)

	ApplyCreate(ctx context.Context, w RecordWriter, rec *models.Record) error
	ApplyUpdate(ctx context.Context, w RecordWriter, rec *models.Record) error
	ApplyDelete(ctx context.Context, w RecordWriter, rec *models.Record, actor string) error
	ApplyRestore(ctx context.Context, w RecordWriter, rec *models.Record) error
}

// Registry is a concurrency-safe set of handlers keyed by entity type.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h, replacing any handler of the same type.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.EntityType()] = h
}

// Lookup returns the handler for entityType.
func (r *Registry) Lookup(entityType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return h, nil
}

// Types returns the registered entity types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Apply dispatches op to the matching handler method.
func Apply(ctx context.Context, h Handler, w RecordWriter, op models.Operation, rec *models.Record, actor string) error {
	switch op {
	case models.OperationCreate:
		return h.ApplyCreate(ctx, w, rec)
	case models.OperationUpdate:
		return h.ApplyUpdate(ctx, w, rec)
	case models.OperationDelete:
		return h.ApplyDelete(ctx, w, rec, actor)
	case models.OperationRestore:
		return h.ApplyRestore(ctx, w, rec)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// DefaultRegistry registers the supported business entity types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewJSONHandler(models.EntityTypeAccount, 1, 1, "name"))
	r.Register(NewJSONHandler(models.EntityTypeCustomer, 1, 1, "name"))
	r.Register(NewJSONHandler(models.EntityTypeVendor, 1, 1, "name"))
	r.Register(NewJSONHandler(models.EntityTypeTransaction, 1, 1, "amount", "date"))
	r.Register(NewJSONHandler(models.EntityTypeInvoice, 1, 1, "number", "total"))
	r.Register(NewJSONHandler(models.EntityTypeBill, 1, 1, "number", "total"))
	r.Register(NewJSONHandler(models.EntityTypePayment, 1, 1, "amount"))
	r.Register(NewJSONHandler(models.EntityTypeBudget, 1, 1, "name", "period"))
	r.Register(NewJSONHandler(models.EntityTypeCashFlow, 1, 1, "period"))
	return r
}
