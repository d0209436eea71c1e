package cachekey

import "fmt"

// Lookup describes the cache namespace a platform build restores from.
type Lookup struct {
	Platform  string
	Toolchain string
	Key       Key
}

// Exact returns the fully-specific cache key for this lookup.
func (l Lookup) Exact() string {
	return fmt.Sprintf("%s-%s-%s", l.Platform, l.Toolchain, l.Key.Hash)
}

// FallbackChain returns candidate keys from most to least specific:
// (platform, toolchain, exact hash), then (platform, toolchain), then
// (platform). Restoring from the closest available prior cache maximizes
// the hit rate while staying correct, since a stale restore only means
// extra resolution work, never a wrong build.
//
// The non-exact candidates end in the segment delimiter so that a
// prefix match stops at a segment boundary: toolchain "8.0.1" must not
// restore an "8.0.100" entry.
func (l Lookup) FallbackChain() []string {
	return []string{
		l.Exact(),
		fmt.Sprintf("%s-%s-", l.Platform, l.Toolchain),
		l.Platform + "-",
	}
}
