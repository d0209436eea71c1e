package publish

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"github.com/vk/shipgridgo/internal/ctxlog"
)

// Release is the created release object. It is always a draft; nothing in
// this system ever promotes it.
type Release struct {
	ID      int64  `json:"id"`
	Version string `json:"version"`
	Draft   bool   `json:"draft"`
	// Assets are the attached file names.
	Assets []string `json:"assets"`
}

// ReleaseAPI creates draft releases with attached assets.
type ReleaseAPI interface {
	CreateDraft(ctx context.Context, owner, repo, versionValue string, assetPaths []string) (*Release, error)
}

// ReleaseClient is the HTTP client for the release-hosting API.
type ReleaseClient struct {
	rc *resty.Client
}

// NewReleaseClient creates a release client for the given API base URL.
func NewReleaseClient(baseURL, token string) *ReleaseClient {
	return &ReleaseClient{rc: resty.New().SetBaseURL(baseURL).SetAuthToken(token)}
}

// Close releases the underlying HTTP client.
func (c *ReleaseClient) Close() error {
	return c.rc.Close()
}

// CreateDraft implements ReleaseAPI. The release is created in draft state
// and every asset is uploaded to it before returning.
func (c *ReleaseClient) CreateDraft(ctx context.Context, owner, repo, versionValue string, assetPaths []string) (*Release, error) {
	logger := ctxlog.FromContext(ctx)

	var release Release
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"tag_name": "v" + versionValue,
			"name":     versionValue,
			"draft":    true,
		}).
		SetResult(&release).
		Post(fmt.Sprintf("/repos/%s/%s/releases", owner, repo))
	if err != nil {
		return nil, fmt.Errorf("failed to create draft release: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to create draft release: %s: %s", resp.Status(), resp.String())
	}
	release.Draft = true
	release.Version = versionValue

	for _, path := range assetPaths {
		resp, err := c.rc.R().
			SetContext(ctx).
			SetFile("asset", path).
			Post(fmt.Sprintf("/repos/%s/%s/releases/%d/assets", owner, repo, release.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to attach asset %q: %w", path, err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("failed to attach asset %q: %s", path, resp.Status())
		}
	}
	logger.Info("Draft release created.", "version", versionValue, "assets", len(assetPaths))
	return &release, nil
}
