package storage

import "errors"

// Common client storage errors
var (
	// ErrChangeNotFound indicates that a ledger entry does not exist
	ErrChangeNotFound = errors.New("change not found")

	// ErrQueueItemNotFound indicates that a package is not in the outbound queue
	ErrQueueItemNotFound = errors.New("queue item not found")

	// ErrIdentityNotFound indicates that the entity was never synced from this replica
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrRecordNotFound indicates that the local replica has no such record
	ErrRecordNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
