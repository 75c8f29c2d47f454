// Package codec builds, serializes and verifies sync packages.
//
// The checksum covers a canonical serialization of the package: a JSON document with a fixed
// field order, NFC-normalized strings, base64 payload bytes and millisecond Unix timestamps.
// Entity order inside a change-set and change-set order inside the package are significant.
// Server-side bookkeeping (entity tenant stamp, receive time, status) is not covered.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/iudanet/booksync/internal/crypto"
	"github.com/iudanet/booksync/internal/models"
)

// Canonical returns the canonical byte form of pkg, excluding its checksum.
func Canonical(pkg *models.SyncPackage) []byte {
	var b bytes.Buffer

	b.WriteString(`{"change_sets":[`)
	for i, cs := range pkg.ChangeSets {
		if i > 0 {
			b.WriteByte(',')
		}
		writeChangeSet(&b, cs)
	}
	b.WriteString(`],"package_id":`)
	writeString(&b, pkg.PackageID)
	b.WriteString(`,"protocol_version":`)
	writeString(&b, pkg.ProtocolVersion)
	b.WriteString(`,"tenant_id":`)
	writeString(&b, pkg.TenantID)
	b.WriteString(`,"timestamp":`)
	writeTime(&b, pkg.Timestamp)
	b.WriteString(`,"user_id":`)
	writeString(&b, pkg.UserID)
	b.WriteByte('}')

	return b.Bytes()
}

// Checksum computes the digest of the canonical form of pkg.
func Checksum(pkg *models.SyncPackage) string {
	return crypto.PackageDigest(Canonical(pkg))
}

// Seal stamps pkg with its checksum.
func Seal(pkg *models.SyncPackage) {
	pkg.Checksum = Checksum(pkg)
}

// Verify reports whether the checksum of pkg matches its content.
func Verify(pkg *models.SyncPackage) bool {
	return pkg.Checksum != "" && pkg.Checksum == Checksum(pkg)
}

// Encode serializes pkg into its wire form.
func Encode(pkg *models.SyncPackage) ([]byte, error) {
	data, err := json.Marshal(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode package: %w", err)
	}
	return data, nil
}

// Decode parses the wire form of a package. It does not validate it.
func Decode(data []byte) (*models.SyncPackage, error) {
	var pkg models.SyncPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to decode package: %w", err)
	}
	return &pkg, nil
}

// Build groups entities into change-sets by entity type, keeping the order in which types first
// appear and the order of entities within each type, and returns a sealed package.
func Build(tenantID, userID string, entities []models.SyncEntity, now time.Time) *models.SyncPackage {
	pkg := &models.SyncPackage{
		PackageID:       uuid.New().String(),
		TenantID:        tenantID,
		UserID:          userID,
		Timestamp:       models.NormalizeTime(now),
		ProtocolVersion: models.ProtocolVersion,
	}

	index := make(map[string]int)
	for _, e := range entities {
		i, ok := index[e.EntityType]
		if !ok {
			i = len(pkg.ChangeSets)
			index[e.EntityType] = i
			pkg.ChangeSets = append(pkg.ChangeSets, models.ChangeSet{EntityType: e.EntityType})
		}
		cs := &pkg.ChangeSets[i]
		cs.Entities = append(cs.Entities, e)
		cs.LastModified = models.MaxTime(cs.LastModified, models.NormalizeTime(e.LocalTimestamp))
	}

	Seal(pkg)
	return pkg
}

func writeChangeSet(b *bytes.Buffer, cs models.ChangeSet) {
	b.WriteString(`{"entities":[`)
	for i, e := range cs.Entities {
		if i > 0 {
			b.WriteByte(',')
		}
		writeEntity(b, e)
	}
	b.WriteString(`],"entity_type":`)
	writeString(b, cs.EntityType)
	b.WriteString(`,"last_modified":`)
	writeTime(b, cs.LastModified)
	b.WriteByte('}')
}

func writeEntity(b *bytes.Buffer, e models.SyncEntity) {
	b.WriteString(`{"base_payload":`)
	if e.BasePayload != nil {
		writePayload(b, *e.BasePayload)
	} else {
		b.WriteString("null")
	}
	b.WriteString(`,"content_hash":`)
	writeString(b, e.ContentHash)
	b.WriteString(`,"entity_type":`)
	writeString(b, e.EntityType)
	b.WriteString(`,"local_id":`)
	writeString(b, e.LocalID)
	b.WriteString(`,"local_timestamp":`)
	writeTime(b, e.LocalTimestamp)
	b.WriteString(`,"operation":`)
	writeString(b, string(e.Operation))
	b.WriteString(`,"payload":`)
	writePayload(b, e.Payload)
	b.WriteString(`,"remote_id":`)
	writeString(b, e.RemoteID)
	b.WriteString(`,"remote_timestamp":`)
	if e.RemoteTimestamp != nil {
		writeTime(b, *e.RemoteTimestamp)
	} else {
		b.WriteString("null")
	}
	b.WriteByte('}')
}

func writePayload(b *bytes.Buffer, p models.Payload) {
	b.WriteString(`{"data":"`)
	b.WriteString(base64.StdEncoding.EncodeToString(p.Data))
	b.WriteString(`","schema_version":`)
	b.WriteString(strconv.Itoa(p.SchemaVersion))
	b.WriteByte('}')
}

func writeString(b *bytes.Buffer, s string) {
	// json.Marshal строки не может вернуть ошибку
	quoted, _ := json.Marshal(norm.NFC.String(s))
	b.Write(quoted)
}

func writeTime(b *bytes.Buffer, t time.Time) {
	if t.IsZero() {
		b.WriteString("0")
		return
	}
	b.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
}
