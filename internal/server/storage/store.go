package storage

import "context"

// Queries is every operation of the central store. It is implemented both by the store
// itself and by the transaction handed to WithTx.
type Queries interface {
	RecordStorage
	MappingStorage
	ConflictStorage
	StatusStorage
	HistoryStorage
}

// Store is the central sync store.
type Store interface {
	Queries

	// WithTx runs fn in one transaction, committing when fn returns nil.
	// fn must use only the Queries it is given.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
