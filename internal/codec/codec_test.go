package codec

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
)

// createTestEntity создает тестовую сущность
func createTestEntity(entityType, localID string, op models.Operation, data string) models.SyncEntity {
	return models.SyncEntity{
		LocalID:        localID,
		EntityType:     entityType,
		Operation:      op,
		LocalTimestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:        models.Payload{SchemaVersion: 1, Data: []byte(data)},
	}
}

func createTestPackage() *models.SyncPackage {
	remoteTS := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	base := models.Payload{SchemaVersion: 1, Data: []byte(`{"name":"Cash"}`)}

	entities := []models.SyncEntity{
		createTestEntity(models.EntityTypeAccount, "acc-1", models.OperationCreate, `{"name":"Cash"}`),
		createTestEntity(models.EntityTypeInvoice, "inv-1", models.OperationCreate, `{"total":100}`),
		createTestEntity(models.EntityTypeAccount, "acc-2", models.OperationCreate, `{"name":"Bank"}`),
	}
	entities[2].RemoteTimestamp = &remoteTS
	entities[2].RemoteID = "remote-acc-2"
	entities[2].BasePayload = &base
	entities[2].Operation = models.OperationUpdate

	return Build("tenant-1", "user-1", entities, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC))
}

func TestBuild_GroupsByTypeInOrder(t *testing.T) {
	pkg := createTestPackage()

	require.Len(t, pkg.ChangeSets, 2)
	assert.Equal(t, models.EntityTypeAccount, pkg.ChangeSets[0].EntityType)
	assert.Equal(t, models.EntityTypeInvoice, pkg.ChangeSets[1].EntityType)

	require.Len(t, pkg.ChangeSets[0].Entities, 2)
	assert.Equal(t, "acc-1", pkg.ChangeSets[0].Entities[0].LocalID)
	assert.Equal(t, "acc-2", pkg.ChangeSets[0].Entities[1].LocalID)

	assert.Equal(t, 3, pkg.EntityCount())
	assert.Equal(t, models.ProtocolVersion, pkg.ProtocolVersion)
	assert.NotEmpty(t, pkg.PackageID)
	assert.True(t, Verify(pkg))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	pkg := createTestPackage()

	data, err := Encode(pkg)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, pkg.EntityCount(), decoded.EntityCount())
	require.Len(t, decoded.ChangeSets, len(pkg.ChangeSets))
	for i, cs := range pkg.ChangeSets {
		require.Len(t, decoded.ChangeSets[i].Entities, len(cs.Entities))
		for j, e := range cs.Entities {
			got := decoded.ChangeSets[i].Entities[j]
			assert.Equal(t, e.LocalID, got.LocalID)
			assert.Equal(t, e.Payload.Data, got.Payload.Data)
		}
	}

	assert.Equal(t, pkg.Checksum, decoded.Checksum)
	assert.True(t, Verify(decoded))
	assert.NoError(t, Validate(decoded))
}

func TestChecksum_OrderSensitive(t *testing.T) {
	pkg := createTestPackage()
	original := pkg.Checksum

	entities := pkg.ChangeSets[0].Entities
	entities[0], entities[1] = entities[1], entities[0]

	assert.NotEqual(t, original, Checksum(pkg))
	assert.False(t, Verify(pkg))
}

func TestChecksum_UnicodeNormalization(t *testing.T) {
	composed := createTestEntity(models.EntityTypeCustomer, "caf\u00e9", models.OperationCreate, `{}`)
	decomposed := createTestEntity(models.EntityTypeCustomer, "cafe\u0301", models.OperationCreate, `{}`)

	a := &models.SyncPackage{PackageID: "p", ChangeSets: []models.ChangeSet{{EntityType: models.EntityTypeCustomer, Entities: []models.SyncEntity{composed}}}}
	b := &models.SyncPackage{PackageID: "p", ChangeSets: []models.ChangeSet{{EntityType: models.EntityTypeCustomer, Entities: []models.SyncEntity{decomposed}}}}

	assert.Equal(t, Checksum(a), Checksum(b))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate     func(p *models.SyncPackage)
		name       string
		wantReason string
		reseal     bool
	}{
		{
			name:       "tampered checksum",
			mutate:     func(p *models.SyncPackage) { p.Checksum = "deadbeef" },
			wantReason: "checksum mismatch",
		},
		{
			name:       "tampered content",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets[1].Entities[0].Payload.Data = []byte(`{"total":1}`) },
			wantReason: "checksum mismatch",
		},
		{
			name:       "no change-sets",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets = nil },
			wantReason: "no change-sets",
			reseal:     true,
		},
		{
			name:       "empty entity type",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets[1].Entities[0].EntityType = "" },
			wantReason: "empty entity type",
			reseal:     true,
		},
		{
			name:       "nil local id",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets[1].Entities[0].LocalID = uuid.Nil.String() },
			wantReason: "missing local id",
			reseal:     true,
		},
		{
			name:       "empty payload",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets[1].Entities[0].Payload.Data = nil },
			wantReason: "empty payload",
			reseal:     true,
		},
		{
			name:       "unknown operation",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets[1].Entities[0].Operation = "upsert" },
			wantReason: "unknown operation",
			reseal:     true,
		},
		{
			name:       "entity type mismatch",
			mutate:     func(p *models.SyncPackage) { p.ChangeSets[1].Entities[0].EntityType = models.EntityTypeBill },
			wantReason: "does not match change-set type",
			reseal:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := createTestPackage()
			tt.mutate(pkg)
			if tt.reseal {
				Seal(pkg)
			}

			err := Validate(pkg)
			require.Error(t, err)
			assert.True(t, syncerr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}
}

func TestValidate_NilPackage(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.True(t, syncerr.IsValidation(err))
}

func TestVerify_EmptyChecksum(t *testing.T) {
	pkg := createTestPackage()
	pkg.Checksum = ""
	assert.False(t, Verify(pkg))
}
