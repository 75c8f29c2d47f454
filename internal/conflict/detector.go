// Package conflict detects optimistic-concurrency conflicts and resolves them with per-entity-type strategies.
package conflict

import (
	"strconv"

	"github.com/iudanet/booksync/internal/crypto"
	"github.com/iudanet/booksync/internal/models"
)

// Verdict is the outcome of comparing an incoming entity with the central identity mapping.
type Verdict int

const (
	// VerdictApply means the change can be applied.
	VerdictApply Verdict = iota
	// VerdictDuplicate means the same content was already applied.
	VerdictDuplicate
	// VerdictConflict means the central store moved past what the replica observed.
	VerdictConflict
	// VerdictCollision means a create reused an identity that already maps to different content.
	VerdictCollision
)

func (v Verdict) String() string {
	switch v {
	case VerdictApply:
		return "apply"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictConflict:
		return "conflict"
	case VerdictCollision:
		return "collision"
	default:
		return "unknown"
	}
}

// Detect classifies e against its mapping. It has no side effects and no clock:
// equal inputs always give the same verdict.
func Detect(e *models.SyncEntity, m *models.IdentityMapping) Verdict {
	if m == nil {
		return VerdictApply
	}

	// повторная доставка того же изменения
	if e.ContentHash != "" && e.ContentHash == m.ContentHash {
		return VerdictDuplicate
	}

	if e.Operation == models.OperationCreate {
		return VerdictCollision
	}

	if e.RemoteTimestamp != nil && m.LastSynced.After(*e.RemoteTimestamp) {
		return VerdictConflict
	}

	return VerdictApply
}

// Fingerprint identifies a conflict by entity identity, local content and the watermark the
// replica edited against. Re-delivering the same change yields the same fingerprint.
func Fingerprint(e *models.SyncEntity) string {
	var observed string
	if e.RemoteTimestamp != nil {
		observed = strconv.FormatInt(e.RemoteTimestamp.UnixMilli(), 10)
	}
	return crypto.Fingerprint(e.TenantID, e.EntityType, e.LocalID, e.ContentHash, observed)
}
