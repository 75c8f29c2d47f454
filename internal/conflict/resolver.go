package conflict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
)

// ErrManualResolutionRequired is returned by the manual strategy when no resolved data was supplied.
var ErrManualResolutionRequired = errors.New("manual resolution requires resolved data")

// MergeError reports a field merge that could not complete.
type MergeError struct {
	Reason string
	Fields []string
}

func (e *MergeError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("field merge failed: %s: %s", e.Reason, strings.Join(e.Fields, ", "))
	}
	return "field merge failed: " + e.Reason
}

// Resolution is the outcome of applying a strategy to a conflict.
type Resolution struct {
	// Payload is the resolved state of the record.
	Payload models.Payload
	// Operation applies Payload. Empty means the central record already holds the resolution.
	Operation models.Operation
	Strategy  models.Strategy
}

// Resolver applies strategies to conflict records.
type Resolver struct {
	table    StrategyTable
	registry *entity.Registry
}

// NewResolver creates a resolver. A nil table means the built-in defaults.
func NewResolver(table StrategyTable, registry *entity.Registry) *Resolver {
	if table == nil {
		table = DefaultStrategyTable()
	}
	return &Resolver{table: table, registry: registry}
}

// StrategyFor returns the configured strategy for an entity type.
func (r *Resolver) StrategyFor(entityType string) models.Strategy {
	return r.table.StrategyFor(entityType)
}

// Resolve applies strategy to c. An empty strategy uses the table; resolved is only read by Manual.
func (r *Resolver) Resolve(c *models.ConflictRecord, strategy models.Strategy, resolved *models.Payload) (*Resolution, error) {
	if strategy == "" {
		strategy = r.table.StrategyFor(c.EntityType)
	}

	switch strategy {
	case models.StrategyLocalWins:
		return r.localWins(c), nil
	case models.StrategyRemoteWins:
		return remoteWins(c), nil
	case models.StrategyLastModifiedWins:
		// при равенстве побеждает центральное хранилище
		if c.LocalTimestamp.After(c.RemoteTimestamp) {
			res := r.localWins(c)
			res.Strategy = strategy
			return res, nil
		}
		res := remoteWins(c)
		res.Strategy = strategy
		return res, nil
	case models.StrategyFieldMerge:
		return r.fieldMerge(c)
	case models.StrategyManual:
		if resolved == nil || resolved.IsEmpty() {
			return nil, ErrManualResolutionRequired
		}
		h, err := r.registry.Lookup(c.EntityType)
		if err != nil {
			return nil, err
		}
		p, err := h.Serialize(*resolved, models.OperationUpdate)
		if err != nil {
			return nil, err
		}
		return &Resolution{Payload: p, Operation: writeOp(c), Strategy: strategy}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

func (r *Resolver) localWins(c *models.ConflictRecord) *Resolution {
	op := c.Operation
	if op != models.OperationDelete {
		op = writeOp(c)
	}
	return &Resolution{Payload: c.LocalData.Clone(), Operation: op, Strategy: models.StrategyLocalWins}
}

func remoteWins(c *models.ConflictRecord) *Resolution {
	res := &Resolution{Strategy: models.StrategyRemoteWins}
	if c.RemoteData != nil {
		res.Payload = c.RemoteData.Clone()
	}
	return res
}

func (r *Resolver) fieldMerge(c *models.ConflictRecord) (*Resolution, error) {
	if c.BaseData == nil {
		return nil, &MergeError{Reason: "no base snapshot"}
	}
	if c.RemoteData == nil || c.RemoteDeleted || c.Operation == models.OperationDelete {
		return nil, &MergeError{Reason: "record deleted on one side"}
	}
	if c.BaseData.SchemaVersion != c.LocalData.SchemaVersion || c.RemoteData.SchemaVersion != c.LocalData.SchemaVersion {
		return nil, &MergeError{Reason: "schema version mismatch"}
	}

	h, err := r.registry.Lookup(c.EntityType)
	if err != nil {
		return nil, err
	}

	local, err := h.Fields(c.LocalData)
	if err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}
	remote, err := h.Fields(*c.RemoteData)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	base, err := h.Fields(*c.BaseData)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}

	merged, unresolved := Merge(local, remote, base)
	if len(unresolved) > 0 {
		return nil, &MergeError{Reason: "fields changed on both sides", Fields: unresolved}
	}

	p, err := h.Compose(merged, c.LocalData.SchemaVersion)
	if err != nil {
		return nil, err
	}
	return &Resolution{Payload: p, Operation: models.OperationUpdate, Strategy: models.StrategyFieldMerge}, nil
}

// writeOp chooses how to write a resolved state over the central record.
func writeOp(c *models.ConflictRecord) models.Operation {
	if c.RemoteDeleted {
		return models.OperationRestore
	}
	return models.OperationUpdate
}
