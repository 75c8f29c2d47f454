package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iudanet/booksync/internal/client/storage"
	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
)

// recordInput holds the flags of commands that write a record.
type recordInput struct {
	data          string
	file          string
	schemaVersion int
}

func (in *recordInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.data, "data", "", "Record as a JSON object")
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "Read the record JSON from a file ('-' for stdin)")
	cmd.Flags().IntVar(&in.schemaVersion, "schema-version", 1, "Schema version the record is written with")
}

// NewRecordCommand creates the record command group that writes to the change ledger.
func NewRecordCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Change local records",
		Long:  "Every change is applied to the local replica and appended to the change ledger; push or sync sends it to the server.",
	}
	cmd.AddCommand(newRecordWriteCommand(opts, models.OperationCreate))
	cmd.AddCommand(newRecordWriteCommand(opts, models.OperationUpdate))
	cmd.AddCommand(newRecordWriteCommand(opts, models.OperationDelete))
	cmd.AddCommand(newRecordWriteCommand(opts, models.OperationRestore))
	cmd.AddCommand(newRecordShowCommand(opts))
	return cmd
}

func newRecordWriteCommand(opts *RootOptions, op models.Operation) *cobra.Command {
	var in recordInput

	cmd := &cobra.Command{SilenceUsage: true}
	switch op {
	case models.OperationCreate:
		cmd.Use = "add <entity-type> [local-id]"
		cmd.Short = "Create a record (local id defaults to a new UUID)"
		cmd.Args = cobra.RangeArgs(1, 2)
	case models.OperationUpdate:
		cmd.Use = "update <entity-type> <local-id>"
		cmd.Short = "Replace a record"
		cmd.Args = cobra.ExactArgs(2)
	case models.OperationDelete:
		cmd.Use = "delete <entity-type> <local-id>"
		cmd.Short = "Delete a record"
		cmd.Args = cobra.ExactArgs(2)
	case models.OperationRestore:
		cmd.Use = "restore <entity-type> <local-id>"
		cmd.Short = "Restore a deleted record"
		cmd.Args = cobra.ExactArgs(2)
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		entityType := args[0]
		localID := uuid.NewString()
		if len(args) > 1 {
			localID = args[1]
		}

		payload, err := in.payload(cmd, opts, op)
		if err != nil {
			return err
		}
		if err := checkPayload(entityType, op, payload); err != nil {
			return err
		}

		return opts.withSession(cmd, false, func(ctx context.Context, s *session) error {
			seq, err := s.sync.Record(ctx, entityType, localID, op, payload)
			if err != nil {
				return err
			}
			p := opts.printer(cmd)
			return p.emit(map[string]any{
				"seq":         seq,
				"entity_type": entityType,
				"local_id":    localID,
				"operation":   op,
			}, func() {
				p.Printf("Recorded %s of %s/%s (ledger #%d)\n", op, entityType, localID, seq)
			})
		})
	}

	// delete и restore берут последний снимок записи из реплики
	if op == models.OperationCreate || op == models.OperationUpdate {
		in.bind(cmd)
	}
	return cmd
}

// payload reads record data from --data, --file or an interactive prompt.
func (in *recordInput) payload(cmd *cobra.Command, opts *RootOptions, op models.Operation) (models.Payload, error) {
	if op == models.OperationDelete || op == models.OperationRestore {
		return models.Payload{}, nil
	}

	var raw string
	switch {
	case in.data != "":
		raw = in.data
	case in.file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return models.Payload{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = string(b)
	case in.file != "":
		b, err := os.ReadFile(in.file)
		if err != nil {
			return models.Payload{}, fmt.Errorf("failed to read record file: %w", err)
		}
		raw = string(b)
	default:
		line, err := opts.IO.ReadInput("Record (JSON): ")
		if err != nil {
			return models.Payload{}, fmt.Errorf("failed to read record: %w", err)
		}
		raw = line
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Payload{}, syncerr.NewValidationError(errNoData.Error())
	}
	if !json.Valid([]byte(raw)) {
		return models.Payload{}, syncerr.NewValidationError("record is not valid JSON")
	}
	return models.Payload{Data: []byte(raw), SchemaVersion: in.schemaVersion}, nil
}

// checkPayload runs the same entity handler checks the server applies on upload.
func checkPayload(entityType string, op models.Operation, payload models.Payload) error {
	h, err := entity.DefaultRegistry().Lookup(entityType)
	if err != nil {
		return syncerr.NewValidationError(err.Error())
	}
	if payload.IsEmpty() {
		return nil
	}
	if _, err := h.Serialize(payload, op); err != nil {
		return syncerr.NewValidationError(err.Error())
	}
	return nil
}

func newRecordShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show <entity-type> <local-id>",
		Short:        "Show a record of the local replica",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, false, func(ctx context.Context, s *session) error {
				rec, err := s.store.GetRecord(ctx, args[0], args[1])
				if errors.Is(err, storage.ErrRecordNotFound) {
					return fmt.Errorf("%s/%s: %w", args[0], args[1], err)
				}
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(recordView(rec), func() {
					p.Printf("Type:       %s\n", rec.EntityType)
					p.Printf("Local ID:   %s\n", rec.LocalID)
					p.Printf("Remote ID:  %s\n", orDash(rec.RemoteID))
					p.Printf("Updated:    %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
					p.Printf("Deleted:    %t\n", rec.Deleted)
					p.Printf("Synced:     %t\n", isSynced(rec))
					p.Printf("Schema:     v%d\n", rec.Payload.SchemaVersion)
					p.Printf("Data:       %s\n", rec.Payload.Data)
				})
			})
		},
	}
}

// recordJSON is the JSON form of a replica record for --format json.
type recordJSON struct {
	Data          json.RawMessage `json:"data,omitempty"`
	EntityType    string          `json:"entity_type"`
	LocalID       string          `json:"local_id"`
	RemoteID      string          `json:"remote_id,omitempty"`
	UpdatedAt     string          `json:"updated_at"`
	SchemaVersion int             `json:"schema_version"`
	Deleted       bool            `json:"deleted"`
	Synced        bool            `json:"synced"`
}

func recordView(rec *storage.ReplicaRecord) recordJSON {
	v := recordJSON{
		EntityType:    rec.EntityType,
		LocalID:       rec.LocalID,
		RemoteID:      rec.RemoteID,
		UpdatedAt:     rec.UpdatedAt.Format(time.RFC3339),
		SchemaVersion: rec.Payload.SchemaVersion,
		Deleted:       rec.Deleted,
		Synced:        isSynced(rec),
	}
	if json.Valid(rec.Payload.Data) {
		v.Data = rec.Payload.Data
	}
	return v
}

// isSynced reports whether the replica holds exactly the state last confirmed by the server.
func isSynced(rec *storage.ReplicaRecord) bool {
	return rec.SyncedPayload != nil && rec.SyncedPayload.Equal(rec.Payload)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
