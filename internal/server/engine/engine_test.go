package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/booksync/internal/codec"
	"github.com/iudanet/booksync/internal/conflict"
	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage/sqlite"
)

const (
	testTenant = "tenant-1"
	testActor  = "user-1"
)

// testClock is a manually advanced clock.
type testClock struct {
	t  time.Time
	mu sync.Mutex
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestEngine(t *testing.T, opts ...Option) (*Engine, *sqlite.Storage, *testClock) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := newTestClock()
	registry := entity.DefaultRegistry()
	resolver := conflict.NewResolver(conflict.DefaultStrategyTable(), registry)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(store, registry, resolver, setupTestLogger(), opts...), store, clock
}

func newEntity(entityType, localID string, op models.Operation, data string, observed *time.Time) models.SyncEntity {
	return models.SyncEntity{
		LocalID:         localID,
		EntityType:      entityType,
		Operation:       op,
		LocalTimestamp:  time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		RemoteTimestamp: observed,
		Payload:         models.Payload{SchemaVersion: 1, Data: []byte(data)},
	}
}

func newPackage(entities ...models.SyncEntity) *models.SyncPackage {
	return codec.Build(testTenant, testActor, entities, time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC))
}

func newID() string {
	return uuid.New().String()
}
