package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Key derives the cache key for a logical request from its canonical
// parts. The parts are joined with an unambiguous separator and hashed, so
// the key is filesystem-safe and identical parts always produce the same
// key. Callers build parts from request semantics, never from raw URLs,
// which keeps credentials out of the key space.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// Class partitions cached payloads by how quickly they go stale. The TTL
// is evaluated at read time against the entry's stored-at stamp; writes
// never record a class.
type Class uint8

const (
	// ClassGrid covers paginated list pages, the fastest-moving data.
	ClassGrid Class = iota

	// ClassDetail covers single-item detail payloads.
	ClassDetail

	// ClassReference covers near-static reference data such as genre
	// lists.
	ClassReference
)

const (
	gridTTL      = 5 * time.Minute
	detailTTL    = 30 * time.Minute
	referenceTTL = 7 * 24 * time.Hour
)

// TTL returns the freshness window of the class.
func (c Class) TTL() time.Duration {
	switch c {
	case ClassDetail:
		return detailTTL
	case ClassReference:
		return referenceTTL
	default:
		return gridTTL
	}
}

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassGrid:
		return "grid"
	case ClassDetail:
		return "detail"
	case ClassReference:
		return "reference"
	default:
		return "unknown"
	}
}
