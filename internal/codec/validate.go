package codec

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
)

// Validate checks a package before any of it is processed.
// It returns a *syncerr.ValidationError listing every problem found; a package that fails
// validation must be rejected as a whole.
func Validate(pkg *models.SyncPackage) error {
	if pkg == nil {
		return syncerr.NewValidationError("package is missing")
	}

	var reasons []string

	if len(pkg.ChangeSets) == 0 {
		reasons = append(reasons, "package contains no change-sets")
	}

	if !Verify(pkg) {
		reasons = append(reasons, "checksum mismatch")
	}

	for i, cs := range pkg.ChangeSets {
		if cs.EntityType == "" {
			reasons = append(reasons, fmt.Sprintf("change-set %d: empty entity type", i))
		}
		for j, e := range cs.Entities {
			reasons = append(reasons, validateEntity(cs.EntityType, e, fmt.Sprintf("change-set %d entity %d", i, j))...)
		}
	}

	if len(reasons) > 0 {
		return syncerr.NewValidationError(reasons...)
	}
	return nil
}

func validateEntity(changeSetType string, e models.SyncEntity, where string) []string {
	var reasons []string

	if e.EntityType == "" {
		reasons = append(reasons, where+": empty entity type")
	} else if changeSetType != "" && e.EntityType != changeSetType {
		reasons = append(reasons, fmt.Sprintf("%s: entity type %q does not match change-set type %q", where, e.EntityType, changeSetType))
	}

	if e.LocalID == "" || e.LocalID == uuid.Nil.String() {
		reasons = append(reasons, where+": missing local id")
	}

	if e.Payload.IsEmpty() {
		reasons = append(reasons, where+": empty payload")
	}

	if !e.Operation.Valid() {
		reasons = append(reasons, fmt.Sprintf("%s: unknown operation %q", where, e.Operation))
	}

	return reasons
}
