package entity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/booksync/internal/models"
)

// memWriter is an in-memory RecordWriter.
type memWriter struct {
	records   map[string]*models.Record
	deletes   int
	lastActor string
}

func newMemWriter() *memWriter {
	return &memWriter{records: make(map[string]*models.Record)}
}

func (w *memWriter) GetRecord(_ context.Context, _, _, remoteID string) (*models.Record, error) {
	rec, ok := w.records[remoteID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (w *memWriter) PutRecord(_ context.Context, rec *models.Record) error {
	cp := *rec
	w.records[rec.RemoteID] = &cp
	return nil
}

func (w *memWriter) DeleteRecord(_ context.Context, rec *models.Record, deletedBy string) error {
	cp := *rec
	cp.Deleted = true
	w.records[rec.RemoteID] = &cp
	w.deletes++
	w.lastActor = deletedBy
	return nil
}

func TestDefaultRegistry_Types(t *testing.T) {
	r := DefaultRegistry()

	for _, typ := range models.SupportedEntityTypes {
		h, err := r.Lookup(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, h.EntityType())
	}
	assert.Len(t, r.Types(), len(models.SupportedEntityTypes))

	_, err := r.Lookup("Payroll")
	assert.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestJSONHandler_Serialize(t *testing.T) {
	h := NewJSONHandler(models.EntityTypeInvoice, 1, 2, "number", "total")

	tests := []struct {
		name    string
		payload models.Payload
		op      models.Operation
		wantErr error
	}{
		{
			name:    "valid create",
			payload: models.Payload{SchemaVersion: 1, Data: []byte(`{"number":"INV-1","total":100}`)},
			op:      models.OperationCreate,
		},
		{
			name:    "missing required field",
			payload: models.Payload{SchemaVersion: 1, Data: []byte(`{"number":"INV-1"}`)},
			op:      models.OperationUpdate,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "delete skips required fields",
			payload: models.Payload{SchemaVersion: 1, Data: []byte(`{"number":"INV-1"}`)},
			op:      models.OperationDelete,
		},
		{
			name:    "not an object",
			payload: models.Payload{SchemaVersion: 1, Data: []byte(`[1,2]`)},
			op:      models.OperationCreate,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "null",
			payload: models.Payload{SchemaVersion: 1, Data: []byte(`null`)},
			op:      models.OperationCreate,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unsupported schema",
			payload: models.Payload{SchemaVersion: 3, Data: []byte(`{"number":"INV-1","total":1}`)},
			op:      models.OperationCreate,
			wantErr: ErrUnsupportedSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Serialize(tt.payload, tt.op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, out.Equal(tt.payload))
		})
	}
}

func TestJSONHandler_FieldsCompose(t *testing.T) {
	h := NewJSONHandler(models.EntityTypeCustomer, 1, 1, "name")

	fields, err := h.Fields(models.Payload{SchemaVersion: 1, Data: []byte(`{"name":"Acme","city":"Oslo"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `"Acme"`, string(fields["name"]))

	fields["city"] = json.RawMessage(`"Bergen"`)
	p, err := h.Compose(fields, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.SchemaVersion)
	assert.Equal(t, `{"city":"Bergen","name":"Acme"}`, string(p.Data))

	_, err = h.Compose(fields, 2)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestApply_Lifecycle(t *testing.T) {
	ctx := context.Background()
	h := NewJSONHandler(models.EntityTypeAccount, 1, 1, "name")
	w := newMemWriter()

	rec := &models.Record{
		TenantID:   "t1",
		EntityType: models.EntityTypeAccount,
		RemoteID:   "r1",
		LocalID:    "l1",
		Payload:    models.Payload{SchemaVersion: 1, Data: []byte(`{"name":"Cash"}`)},
	}
	require.NoError(t, Apply(ctx, h, w, models.OperationCreate, rec, "alice"))

	upd := *rec
	upd.Payload = models.Payload{SchemaVersion: 1, Data: []byte(`{"name":"Bank"}`)}
	require.NoError(t, Apply(ctx, h, w, models.OperationUpdate, &upd, "alice"))
	assert.Equal(t, `{"name":"Bank"}`, string(w.records["r1"].Payload.Data))

	del := *rec
	del.Payload = models.Payload{}
	require.NoError(t, Apply(ctx, h, w, models.OperationDelete, &del, "bob"))
	assert.True(t, w.records["r1"].Deleted)
	assert.Equal(t, "bob", w.lastActor)
	// last live state is kept for the tombstone
	assert.Equal(t, `{"name":"Bank"}`, string(w.records["r1"].Payload.Data))

	// second delete is a no-op
	require.NoError(t, Apply(ctx, h, w, models.OperationDelete, &del, "bob"))
	assert.Equal(t, 1, w.deletes)

	// update of a deleted record needs a restore first
	err := Apply(ctx, h, w, models.OperationUpdate, &upd, "alice")
	assert.ErrorIs(t, err, ErrRecordDeleted)

	require.NoError(t, Apply(ctx, h, w, models.OperationRestore, &upd, "alice"))
	assert.False(t, w.records["r1"].Deleted)
}

func TestApply_DeleteMissing(t *testing.T) {
	h := NewJSONHandler(models.EntityTypeAccount, 1, 1, "name")
	err := Apply(context.Background(), h, newMemWriter(), models.OperationDelete,
		&models.Record{RemoteID: "nope"}, "alice")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestApply_UnknownOperation(t *testing.T) {
	h := NewJSONHandler(models.EntityTypeAccount, 1, 1, "name")
	err := Apply(context.Background(), h, newMemWriter(), models.Operation("merge"), &models.Record{}, "alice")
	assert.Error(t, err)
}
