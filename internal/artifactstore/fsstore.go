package artifactstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/shipgridgo/internal/ctxlog"
)

// FSStore keeps blobs as files under a root directory. Slashes in blob
// names become subdirectories.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed artifact store rooted at root.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Upload implements Store.
func (s *FSStore) Upload(ctx context.Context, name, path string) error {
	dest := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := copyFile(path, dest); err != nil {
		return fmt.Errorf("failed to upload %q: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Artifact uploaded.", "name", name)
	return nil
}

// Download implements Store.
func (s *FSStore) Download(ctx context.Context, name, destDir string) (string, error) {
	src := filepath.Join(s.root, filepath.FromSlash(name))
	dest := filepath.Join(destDir, filepath.Base(src))
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("failed to download %q: %w", name, err)
	}
	return dest, nil
}

// List implements Store.
func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
