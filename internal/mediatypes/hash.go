package mediatypes

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// HashSize is the length in bytes of a content hash.
const HashSize = 32

// Hash is a 256-bit content digest of a media file.
type Hash [HashSize]byte

// Hex returns the lowercase hexadecimal form of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Hex()
}

// Bytes returns a copy of the digest.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// ParseHash decodes a hexadecimal hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// Value stores the hash as a 32-byte BLOB.
func (h Hash) Value() (driver.Value, error) {
	return h.Bytes(), nil
}

// Scan reads a hash from a BLOB column.
func (h *Hash) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		return fmt.Errorf("cannot scan NULL into Hash")
	default:
		return fmt.Errorf("cannot scan %T into Hash", src)
	}
	if len(b) != HashSize {
		return fmt.Errorf("invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return nil
}

// MediaHash links a media id to the hash of its content.
type MediaHash struct {
	MediaID uuid.UUID `json:"media_id"`
	Hash    Hash      `json:"hash"`
}
