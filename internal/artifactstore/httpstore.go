package artifactstore

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"resty.dev/v3"

	"github.com/vk/shipgridgo/internal/ctxlog"
)

// HTTPStore talks to a remote blob backend: PUT/GET /blobs/{name} and
// GET /blobs?prefix=.
type HTTPStore struct {
	rc *resty.Client
}

// NewHTTPStore creates a store client for the given base URL.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{rc: resty.New().SetBaseURL(baseURL)}
}

// Close releases the underlying HTTP client.
func (s *HTTPStore) Close() error {
	return s.rc.Close()
}

// Upload implements Store.
func (s *HTTPStore) Upload(ctx context.Context, name, filePath string) error {
	resp, err := s.rc.R().
		SetContext(ctx).
		SetFile("blob", filePath).
		Put("/blobs/" + name)
	if err != nil {
		return fmt.Errorf("failed to upload %q: %w", name, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("failed to upload %q: %s", name, resp.Status())
	}
	ctxlog.FromContext(ctx).Debug("Artifact uploaded.", "name", name)
	return nil
}

// Download implements Store.
func (s *HTTPStore) Download(ctx context.Context, name, destDir string) (string, error) {
	dest := filepath.Join(destDir, path.Base(name))
	resp, err := s.rc.R().
		SetContext(ctx).
		SetOutputFileName(dest).
		Get("/blobs/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to download %q: %w", name, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("failed to download %q: %s", name, resp.Status())
	}
	return dest, nil
}

// List implements Store.
func (s *HTTPStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	resp, err := s.rc.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		SetResult(&names).
		Get("/blobs")
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to list blobs: %s", resp.Status())
	}
	return names, nil
}
