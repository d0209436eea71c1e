// Package cachestore is the content-addressed dependency cache shared by
// concurrent platform builds. Entries are keyed by derived cache keys;
// because a key is a pure function of the resolved dependency plan,
// concurrent restores never conflict with concurrent saves.
package cachestore

import "context"

// Store restores and saves cache namespaces.
type Store interface {
	// Restore tries each candidate key in order and restores the first
	// match into dir. Candidates after the first are treated as prefixes,
	// mirroring the exact-then-prefix fallback chain. It returns the key
	// that hit, or ok=false on a full miss.
	Restore(ctx context.Context, candidates []string, dir string) (hit string, ok bool, err error)

	// Save stores dir under exactly key. Saving an existing key is a no-op:
	// identical keys address identical content.
	Save(ctx context.Context, key string, dir string) error
}
