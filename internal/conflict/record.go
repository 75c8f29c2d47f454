package conflict

import (
	"github.com/google/uuid"

	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
)

// NewRecord builds a pending conflict for e against the current central record.
// h decomposes payloads into field conflicts; payloads it cannot read get none.
func NewRecord(e *models.SyncEntity, remote *models.Record, strategy models.Strategy, h entity.Handler) *models.ConflictRecord {
	c := &models.ConflictRecord{
		ConflictID:     uuid.New().String(),
		TenantID:       e.TenantID,
		EntityType:     e.EntityType,
		EntityID:       e.LocalID,
		RemoteID:       e.RemoteID,
		Fingerprint:    Fingerprint(e),
		Operation:      e.Operation,
		Strategy:       strategy,
		Status:         models.ConflictPending,
		LocalData:      e.Payload.Clone(),
		LocalTimestamp: e.LocalTimestamp,
		DetectedAt:     e.ReceivedAt,
	}
	if e.BasePayload != nil {
		base := e.BasePayload.Clone()
		c.BaseData = &base
	}
	if remote != nil {
		rp := remote.Payload.Clone()
		c.RemoteData = &rp
		c.RemoteID = remote.RemoteID
		c.RemoteTimestamp = remote.UpdatedAt
		c.RemoteDeleted = remote.Deleted
	}

	if h != nil && c.RemoteData != nil {
		c.FieldConflicts = fieldConflicts(h, c)
	}
	return c
}

func fieldConflicts(h entity.Handler, c *models.ConflictRecord) []models.FieldConflict {
	local, err := h.Fields(c.LocalData)
	if err != nil {
		return nil
	}
	remote, err := h.Fields(*c.RemoteData)
	if err != nil {
		return nil
	}

	if c.BaseData != nil {
		b, err := h.Fields(*c.BaseData)
		if err == nil {
			return Diff(local, remote, b)
		}
	}
	return Diff(local, remote, nil)
}
