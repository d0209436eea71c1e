package config

import "context"

// Loader is the interface for a format-specific pipeline definition loader.
// The trigger is passed in so loaders can expose it to expressions inside
// the definition; loaders for formats without expressions ignore it.
type Loader interface {
	Load(ctx context.Context, trigger *Trigger, path string) (*Model, error)
}
