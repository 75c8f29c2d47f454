// Package engine implements the server side of the sync protocol: package upload with conflict
// detection, cursor-based download, batch orchestration and conflict resolution.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/booksync/internal/conflict"
	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/server/storage"
)

// DefaultMaxDownloadEntities caps a download page when the caller does not ask for less.
const DefaultMaxDownloadEntities = 1000

// Engine processes sync requests against the central store.
type Engine struct {
	store       storage.Store
	registry    *entity.Registry
	resolver    *conflict.Resolver
	logger      *slog.Logger
	now         func() time.Time
	maxDownload int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxDownloadEntities sets the upper bound of a download page.
func WithMaxDownloadEntities(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDownload = n
		}
	}
}

// New creates an Engine.
func New(store storage.Store, registry *entity.Registry, resolver *conflict.Resolver, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		registry:    registry,
		resolver:    resolver,
		logger:      logger,
		now:         time.Now,
		maxDownload: DefaultMaxDownloadEntities,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clock returns the current time at store precision.
func (e *Engine) clock() time.Time {
	return models.NormalizeTime(e.now())
}

var errPanic = errors.New("internal error while processing package")
