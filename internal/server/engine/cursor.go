package engine

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/iudanet/booksync/internal/server/storage"
	"github.com/iudanet/booksync/internal/syncerr"
)

// cursorPosition is the serialized form of a storage.Position.
type cursorPosition struct {
	ID string `json:"id"`
	TS int64  `json:"ts"`
}

// Cursor holds the download position of every entity type. It travels as an opaque string.
type Cursor map[string]storage.Position

// Encode returns the opaque form of c. An empty cursor encodes to "".
func (c Cursor) Encode() string {
	if len(c) == 0 {
		return ""
	}

	raw := make(map[string]cursorPosition, len(c))
	for entityType, pos := range c {
		raw[entityType] = cursorPosition{TS: pos.Timestamp.UnixMilli(), ID: pos.RemoteID}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		// map of plain structs always marshals
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor. The empty string is the start of every type.
func DecodeCursor(s string) (Cursor, error) {
	c := make(Cursor)
	if s == "" {
		return c, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, syncerr.NewValidationError("malformed cursor")
	}

	var raw map[string]cursorPosition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, syncerr.NewValidationError("malformed cursor")
	}

	for entityType, pos := range raw {
		c[entityType] = positionAt(time.UnixMilli(pos.TS).UTC(), pos.ID)
	}
	return c, nil
}

func positionAt(ts time.Time, remoteID string) storage.Position {
	return storage.Position{Timestamp: ts, RemoteID: remoteID}
}
