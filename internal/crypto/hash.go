package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Domain prefixes keep hashes of different kinds of data from colliding.
const (
	DomainEntity   = "booksync/entity/v1"
	DomainPackage  = "booksync/package/v1"
	DomainConflict = "booksync/conflict/v1"
)

// ContentHash returns the hex SHA-256 identity of an entity change.
// Two deliveries of the same change produce the same hash, which makes apply idempotent.
func ContentHash(entityType, localID, operation string, schemaVersion int, data []byte) string {
	h := sha256.New()
	writeDomain(h, DomainEntity)
	writeField(h, []byte(entityType))
	writeField(h, []byte(localID))
	writeField(h, []byte(operation))

	var version [8]byte
	binary.BigEndian.PutUint64(version[:], uint64(schemaVersion))
	writeField(h, version[:])
	writeField(h, data)

	return hex.EncodeToString(h.Sum(nil))
}

// PackageDigest returns the hex BLAKE2b-256 digest of a canonical package serialization.
func PackageDigest(canonical []byte) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for keys longer than 64 bytes
		panic(err)
	}
	writeDomain(h, DomainPackage)
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// writeDomain пишет префикс домена с нулевым разделителем
func writeDomain(h hash.Hash, domain string) {
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
}

// writeField length-prefixes a field so field boundaries are unambiguous.
func writeField(h hash.Hash, b []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(b)))
	h.Write(length[:])
	h.Write(b)
}

// Fingerprint returns the hex SHA-256 identity of a detected conflict built from parts.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	writeDomain(h, DomainConflict)
	for _, p := range parts {
		writeField(h, []byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
