package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/booksync/internal/models"
)

// ErrRecordNotFound is returned by RecordWriter implementations for missing records.
var ErrRecordNotFound = errors.New("record not found")

// ErrRecordDeleted is returned when updating a record that was deleted.
var ErrRecordDeleted = errors.New("record is deleted")

// JSONHandler handles entity types whose payload is a JSON object with a set of required fields.
type JSONHandler struct {
	entityType string
	required   []string
	minVersion int
	maxVersion int
}

// NewJSONHandler creates a handler accepting schema versions minVersion..maxVersion.
func NewJSONHandler(entityType string, minVersion, maxVersion int, required ...string) *JSONHandler {
	return &JSONHandler{
		entityType: entityType,
		required:   required,
		minVersion: minVersion,
		maxVersion: maxVersion,
	}
}

func (h *JSONHandler) EntityType() string {
	return h.entityType
}

func (h *JSONHandler) Serialize(payload models.Payload, op models.Operation) (models.Payload, error) {
	fields, err := h.Fields(payload)
	if err != nil {
		return models.Payload{}, err
	}

	// удаление несет последний снимок записи, обязательные поля не проверяем
	if op != models.OperationDelete {
		for _, name := range h.required {
			if _, ok := fields[name]; !ok {
				return models.Payload{}, fmt.Errorf("%w: %s requires field %q", ErrInvalidPayload, h.entityType, name)
			}
		}
	}

	return payload.Clone(), nil
}

func (h *JSONHandler) Fields(payload models.Payload) (map[string]json.RawMessage, error) {
	if payload.SchemaVersion < h.minVersion || payload.SchemaVersion > h.maxVersion {
		return nil, fmt.Errorf("%w: %s v%d", ErrUnsupportedSchema, h.entityType, payload.SchemaVersion)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload.Data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s payload is not a JSON object: %v", ErrInvalidPayload, h.entityType, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: %s payload is null", ErrInvalidPayload, h.entityType)
	}
	return fields, nil
}

func (h *JSONHandler) Compose(fields map[string]json.RawMessage, schemaVersion int) (models.Payload, error) {
	if schemaVersion < h.minVersion || schemaVersion > h.maxVersion {
		return models.Payload{}, fmt.Errorf("%w: %s v%d", ErrUnsupportedSchema, h.entityType, schemaVersion)
	}

	// json.Marshal сортирует ключи map, результат детерминирован
	data, err := json.Marshal(fields)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to compose %s payload: %w", h.entityType, err)
	}
	return models.Payload{SchemaVersion: schemaVersion, Data: data}, nil
}

func (h *JSONHandler) ApplyCreate(ctx context.Context, w RecordWriter, rec *models.Record) error {
	rec.Deleted = false
	return w.PutRecord(ctx, rec)
}

// ApplyUpdate writes rec over an existing live record. A missing record is created,
// which covers replicas updating an entity whose create was applied under another mapping.
func (h *JSONHandler) ApplyUpdate(ctx context.Context, w RecordWriter, rec *models.Record) error {
	existing, err := w.GetRecord(ctx, rec.TenantID, rec.EntityType, rec.RemoteID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("failed to load %s record: %w", h.entityType, err)
	}
	if existing != nil && existing.Deleted {
		return fmt.Errorf("%w: %s/%s", ErrRecordDeleted, h.entityType, rec.RemoteID)
	}

	rec.Deleted = false
	return w.PutRecord(ctx, rec)
}

func (h *JSONHandler) ApplyDelete(ctx context.Context, w RecordWriter, rec *models.Record, actor string) error {
	existing, err := w.GetRecord(ctx, rec.TenantID, rec.EntityType, rec.RemoteID)
	if err != nil {
		return fmt.Errorf("failed to load %s record: %w", h.entityType, err)
	}

	// повторное удаление идемпотентно
	if existing.Deleted {
		return nil
	}

	// tombstone keeps the last live state of the record
	rec.Payload = existing.Payload
	return w.DeleteRecord(ctx, rec, actor)
}

func (h *JSONHandler) ApplyRestore(ctx context.Context, w RecordWriter, rec *models.Record) error {
	rec.Deleted = false
	return w.PutRecord(ctx, rec)
}
