package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/iudanet/booksync/internal/client/api"
	"github.com/iudanet/booksync/internal/client/storage/boltdb"
	"github.com/iudanet/booksync/internal/conflict"
	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/engine"
	"github.com/iudanet/booksync/internal/server/handlers"
	"github.com/iudanet/booksync/internal/server/storage/sqlite"
)

// newSyncServer runs the real handlers on an in-memory store, authenticated as testUser/testTenant.
func newSyncServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := testLogger()
	registry := entity.DefaultRegistry()
	eng := engine.New(store, registry, conflict.NewResolver(conflict.DefaultStrategyTable(), registry), logger)
	h := handlers.NewSyncHandler(logger, eng, engine.NewOrchestrator(eng, 2, logger))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync/upload", h.Upload)
	mux.HandleFunc("POST /sync/download", h.Download)
	mux.HandleFunc("GET /sync/conflicts", h.Conflicts)
	mux.HandleFunc("POST /sync/conflicts/resolve", h.Resolve)
	mux.HandleFunc("GET /sync/status", h.Status)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), handlers.UserIDKey, testUser)
		ctx = context.WithValue(ctx, handlers.TenantIDKey, testTenant)
		mux.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(server.Close)
	return server
}

func newReplica(t *testing.T, serverURL string, tune ...func(*Config)) *Service {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := Config{
		TenantID: testTenant,
		UserID:   testUser,
	}
	for _, fn := range tune {
		fn(&cfg)
	}
	return NewService(apiclient.NewClient(serverURL), store, cfg, testLogger())
}

func payloadOf(data string) models.Payload {
	return models.Payload{SchemaVersion: 1, Data: []byte(data)}
}

func TestTwoReplicas_ConcurrentEditsMergeThroughConflict(t *testing.T) {
	ctx := context.Background()
	server := newSyncServer(t)
	a := newReplica(t, server.URL)
	b := newReplica(t, server.URL)

	_, err := a.Record(ctx, models.EntityTypeCustomer, "c-1", models.OperationCreate, payloadOf(`{"name":"Acme","city":"Oslo"}`))
	require.NoError(t, err)
	res, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Succeeded)

	res, err = b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pull.Applied)

	// обе реплики правят одну запись
	_, err = a.Record(ctx, models.EntityTypeCustomer, "c-1", models.OperationUpdate, payloadOf(`{"name":"Acme Ltd","city":"Oslo"}`))
	require.NoError(t, err)
	_, err = b.Record(ctx, models.EntityTypeCustomer, "c-1", models.OperationUpdate, payloadOf(`{"name":"Acme","city":"Bergen"}`))
	require.NoError(t, err)

	res, err = a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Succeeded)

	res, err = b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Conflicts)

	conflicts, err := b.Conflicts(ctx, models.EntityTypeCustomer)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c-1", conflicts[0].EntityID)

	resolved, err := b.Resolve(ctx, conflicts[0].ConflictID, models.StrategyFieldMerge, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Acme Ltd","city":"Bergen"}`, string(resolved.Entity.Payload.Data))

	recB, err := b.store.GetRecord(ctx, models.EntityTypeCustomer, "c-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Acme Ltd","city":"Bergen"}`, string(recB.Payload.Data))
	assert.Equal(t, map[models.SyncStatus]int{models.StatusSuccess: 1}, mustCount(t, b))

	// второе разрешение того же конфликта отклоняется
	_, err = b.Resolve(ctx, conflicts[0].ConflictID, models.StrategyRemoteWins, nil)
	require.Error(t, err)
	assert.True(t, apiclient.IsStatus(err, http.StatusConflict))

	_, err = a.Sync(ctx)
	require.NoError(t, err)
	recA, err := a.store.GetRecord(ctx, models.EntityTypeCustomer, "c-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Acme Ltd","city":"Bergen"}`, string(recA.Payload.Data))

	// одинаковый remote id на обеих репликах
	assert.Equal(t, recA.RemoteID, recB.RemoteID)
	assert.NotEmpty(t, recA.RemoteID)
}

func TestTwoReplicas_DeletePropagates(t *testing.T) {
	ctx := context.Background()
	server := newSyncServer(t)
	a := newReplica(t, server.URL)
	b := newReplica(t, server.URL)

	_, err := a.Record(ctx, models.EntityTypeInvoice, "i-1", models.OperationCreate, payloadOf(`{"number":"INV-1","total":100}`))
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	_, err = a.Record(ctx, models.EntityTypeInvoice, "i-1", models.OperationDelete, models.Payload{})
	require.NoError(t, err)
	res, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Succeeded)

	tombstones, err := a.store.ListTombstones(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, tombstones)

	_, err = b.Sync(ctx)
	require.NoError(t, err)
	live, err := b.store.ListRecords(ctx, models.EntityTypeInvoice, false)
	require.NoError(t, err)
	assert.Empty(t, live)

	report, err := b.Status(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, report.Remote)
	assert.Equal(t, testTenant, report.Remote.TenantID)
	assert.Zero(t, report.Remote.PendingConflicts)
}

func TestPush_SmallPackagesKeepEntityEditsTogether(t *testing.T) {
	ctx := context.Background()
	server := newSyncServer(t)
	a := newReplica(t, server.URL, func(c *Config) { c.MaxPackageEntries = 1 })

	_, err := a.Record(ctx, models.EntityTypeCustomer, "c-1", models.OperationCreate, payloadOf(`{"name":"Acme"}`))
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)

	// две правки одной записи и новая запись в одном push
	_, err = a.Record(ctx, models.EntityTypeCustomer, "c-1", models.OperationUpdate, payloadOf(`{"name":"Acme AS"}`))
	require.NoError(t, err)
	_, err = a.Record(ctx, models.EntityTypeCustomer, "c-2", models.OperationCreate, payloadOf(`{"name":"Globex"}`))
	require.NoError(t, err)
	_, err = a.Record(ctx, models.EntityTypeCustomer, "c-1", models.OperationUpdate, payloadOf(`{"name":"Acme Group"}`))
	require.NoError(t, err)

	res, err := a.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sealed)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Conflicts)

	conflicts, err := a.Conflicts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	rec, err := a.store.GetRecord(ctx, models.EntityTypeCustomer, "c-1")
	require.NoError(t, err)
	require.NotNil(t, rec.SyncedPayload)
	assert.JSONEq(t, `{"name":"Acme Group"}`, string(rec.SyncedPayload.Data))
	assert.Equal(t, map[models.SyncStatus]int{models.StatusSuccess: 4}, mustCount(t, a))
}

func mustCount(t *testing.T, s *Service) map[models.SyncStatus]int {
	t.Helper()
	counts, err := s.store.CountChanges(context.Background())
	require.NoError(t, err)
	return counts
}
