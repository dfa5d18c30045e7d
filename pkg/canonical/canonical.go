// Package canonical provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and SHA-256 digests for civil-status trust artifacts.
//
// Canonicalization must be byte-identical between append-time hashing and
// later independent verification: map keys sorted, no HTML escaping, no
// extraneous whitespace, timestamps rendered as RFC 3339 UTC with
// nanosecond precision, absent detail rendered as the empty string.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

// GenesisHash is the previous-hash sentinel for the first entry of a chain.
// Same width as a real digest, all zero.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashWidth is the hex length of every digest produced by this package.
const HashWidth = len(GenesisHash)

// Hasher produces deterministic digests over canonicalized values.
type Hasher interface {
	Hash(v any) (string, error)
}

// Marshal returns the RFC 8785 canonical JSON encoding of v.
// v is first marshaled with encoding/json (honoring struct tags), then
// transformed to canonical form.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform failed: %w", err)
	}
	return out, nil
}

// Hash returns the lowercase hex SHA-256 digest of the canonical encoding of v.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 digest of raw bytes as lowercase hex.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Timestamp renders t in the one representation used for hashing:
// RFC 3339 UTC with nanosecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsHash reports whether s looks like a digest produced by this package.
func IsHash(s string) bool {
	if len(s) != HashWidth {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f')
	}) < 0
}

// SHA256Hasher is the default Hasher.
type SHA256Hasher struct{}

func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

func (SHA256Hasher) Hash(v any) (string, error) {
	return Hash(v)
}
