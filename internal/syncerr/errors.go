// Package syncerr defines the error taxonomy shared by the sync server and client.
package syncerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/booksync/internal/models"
)

// ValidationError rejects a whole package. It is never retried.
type ValidationError struct {
	Reasons []string
}

// NewValidationError creates a ValidationError from one or more reasons.
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// ProcessingError is a failure to apply a single entity. It does not abort the package.
type ProcessingError struct {
	Err        error
	EntityType string
	EntityID   string
	// Invalid marks entity-level validation failures such as an id collision on create.
	Invalid bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.EntityType, e.EntityID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// TransportError wraps network or store unavailability. Callers retry these with backoff.
type TransportError struct {
	Err        error
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthorizationError rejects a request before any processing.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization failed: " + e.Reason
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsAuthorization reports whether err is or wraps an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// ToSyncError converts err into the typed entry reported to callers.
func ToSyncError(err error) models.SyncError {
	var (
		ve *ValidationError
		pe *ProcessingError
		te *TransportError
		ae *AuthorizationError
	)
	switch {
	case errors.As(err, &ve):
		return models.SyncError{Kind: models.ErrorKindValidation, Message: err.Error()}
	case errors.As(err, &pe):
		kind := models.ErrorKindProcessing
		if pe.Invalid {
			kind = models.ErrorKindValidation
		}
		return models.SyncError{
			Kind:       kind,
			EntityType: pe.EntityType,
			EntityID:   pe.EntityID,
			Message:    pe.Err.Error(),
		}
	case errors.As(err, &te):
		return models.SyncError{Kind: models.ErrorKindTransport, Message: err.Error()}
	case errors.As(err, &ae):
		return models.SyncError{Kind: models.ErrorKindAuthorization, Message: err.Error()}
	default:
		return models.SyncError{Kind: models.ErrorKindProcessing, Message: err.Error()}
	}
}
