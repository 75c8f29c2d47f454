package storage

import (
	"errors"

	"github.com/iudanet/booksync/internal/entity"
)

// Common storage errors
var (
	// ErrRecordNotFound indicates that the central record does not exist.
	// It is the same value entity handlers check for.
	ErrRecordNotFound = entity.ErrRecordNotFound

	// ErrMappingNotFound indicates that no identity mapping exists for a local id
	ErrMappingNotFound = errors.New("identity mapping not found")

	// ErrConflictNotFound indicates that the conflict does not exist for the tenant
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrConflictAlreadyResolved indicates that the conflict left the pending state earlier
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")

	// ErrTombstoneNotFound indicates that no tombstone exists for the record
	ErrTombstoneNotFound = errors.New("tombstone not found")

	// ErrStatusNotFound indicates that the entity has no status record yet
	ErrStatusNotFound = errors.New("sync status not found")
)
