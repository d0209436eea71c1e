package cachestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/shipgridgo/internal/ctxlog"
)

// FSStore keeps cache entries as directories under a root path, one
// directory per key.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed cache store rooted at root.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Restore implements Store. The first candidate must match exactly; later,
// less specific candidates match any stored key they prefix. Among several
// prefix matches the most recently saved entry wins.
func (s *FSStore) Restore(ctx context.Context, candidates []string, dir string) (string, bool, error) {
	logger := ctxlog.FromContext(ctx)

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache root: %w", err)
	}

	for i, candidate := range candidates {
		var matches []os.DirEntry
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if i == 0 && e.Name() == candidate {
				matches = append(matches, e)
			}
			if i > 0 && strings.HasPrefix(e.Name(), candidate) {
				matches = append(matches, e)
			}
		}
		if len(matches) == 0 {
			continue
		}
		sort.Slice(matches, func(a, b int) bool {
			ia, _ := matches[a].Info()
			ib, _ := matches[b].Info()
			return ia.ModTime().After(ib.ModTime())
		})
		hit := matches[0].Name()
		if err := copyTree(filepath.Join(s.root, hit), dir); err != nil {
			return "", false, fmt.Errorf("failed to restore cache entry %q: %w", hit, err)
		}
		logger.Debug("Cache restored.", "key", hit, "requested", candidate)
		return hit, true, nil
	}

	logger.Debug("Cache miss.", "candidates", candidates)
	return "", false, nil
}

// Save implements Store.
func (s *FSStore) Save(ctx context.Context, key string, dir string) error {
	logger := ctxlog.FromContext(ctx)
	dest := filepath.Join(s.root, key)
	if _, err := os.Stat(dest); err == nil {
		// Content-addressed: an existing key already holds this content.
		logger.Debug("Cache entry already present, skipping save.", "key", key)
		return nil
	}
	if err := copyTree(dir, dest); err != nil {
		return fmt.Errorf("failed to save cache entry %q: %w", key, err)
	}
	logger.Debug("Cache entry saved.", "key", key)
	return nil
}

// copyTree recursively copies the contents of src into dest.
func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
