// Package cachekey derives stable dependency-cache keys from a resolved
// dependency plan and produces the fallback chain used on a cache miss.
//
// Keys are derived from the plan rather than from source files: hashing
// sources over-invalidates, because most edits don't change the resolved
// dependency set. Hashing the plan invalidates exactly when resolved
// versions change.
package cachekey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// ResolvedPackage is one entry of a resolved dependency installation plan:
// a concrete, version-pinned package the build tool determined is required.
type ResolvedPackage struct {
	// ID is the package's stable identifier, e.g. "newtonsoft.json/13.0.3".
	ID string
}

// Key is a derived dependency-cache key.
type Key struct {
	Hash string
}

// Derive hashes the sorted set of resolved package identifiers into a key.
// Two plans with identical identifier sets always yield identical keys,
// regardless of the order the resolver emitted them in.
func Derive(plan []ResolvedPackage) Key {
	ids := make([]string, len(plan))
	for i, p := range plan {
		ids[i] = p.ID
	}
	sort.Strings(ids)

	h := sha256.New()
	// Length-prefix every field so that adjacent identifiers can never
	// collide by concatenation.
	writeField := func(data []byte) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		h.Write(lenBuf[:])
		h.Write(data)
	}
	for _, id := range ids {
		writeField([]byte(id))
	}

	return Key{Hash: hex.EncodeToString(h.Sum(nil))}
}
