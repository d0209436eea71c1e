// Package artifactstore is the opaque blob store platform jobs upload their
// artifact sets to and the publisher aggregates from. Uploads are keyed by
// platform name plus file name; there is no locking, uploads for different
// platforms never collide.
package artifactstore

import (
	"context"
	"fmt"
	"strings"
)

// Store is a named blob store.
type Store interface {
	// Upload stores the file at path under the given name.
	Upload(ctx context.Context, name, path string) error
	// Download fetches the named blob into destDir and returns its local path.
	Download(ctx context.Context, name, destDir string) (string, error)
	// List returns all stored names with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ForURL selects a store implementation from a URL: http(s) URLs get the
// HTTP store, anything else is treated as a filesystem root.
func ForURL(u string) (Store, error) {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return NewHTTPStore(u), nil
	}
	if u == "" {
		return nil, fmt.Errorf("artifact store location is empty")
	}
	return NewFSStore(u)
}
