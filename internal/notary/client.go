package notary

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/secrets"
)

// SubmitClient submits a signed archive for notarization and waits for a
// terminal verdict.
type SubmitClient interface {
	Submit(ctx context.Context, archivePath string, material *secrets.Material) (*Verdict, error)
}

// Client talks to the remote notarization service over HTTP. Submit blocks
// until the service reports a terminal status, polling internally; the only
// deadline is the ambient job context. If the context is cancelled mid-wait
// the remote submission is abandoned, not cancelled, and may finish
// server-side with no further local effect.
type Client struct {
	rc           *resty.Client
	pollInterval time.Duration
}

// NewClient creates a notarization client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		rc:           resty.New().SetBaseURL(baseURL),
		pollInterval: 15 * time.Second,
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.rc.Close()
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Log    string `json:"log"`
}

// terminalStatuses are the statuses after which the service will not change
// its mind about a submission.
var terminalStatuses = map[string]bool{
	"Accepted": true,
	"Rejected": true,
	"Invalid":  true,
}

// Submit implements SubmitClient.
func (c *Client) Submit(ctx context.Context, archivePath string, material *secrets.Material) (*Verdict, error) {
	logger := ctxlog.FromContext(ctx)

	var created submitResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBasicAuth(material.NotaryUser, material.NotaryPassword).
		SetHeader("X-Team-Id", material.TeamID).
		SetFile("archive", archivePath).
		SetResult(&created).
		Post("/submissions")
	if err != nil {
		return nil, fmt.Errorf("notarization submission failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("notarization submission failed: %s: %s", resp.Status(), resp.String())
	}
	logger.Info("Notarization submitted, waiting for verdict.", "submission_id", created.ID)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var status statusResponse
		resp, err := c.rc.R().
			SetContext(ctx).
			SetBasicAuth(material.NotaryUser, material.NotaryPassword).
			SetResult(&status).
			Get("/submissions/" + created.ID)
		if err != nil {
			return nil, fmt.Errorf("notarization status poll failed: %w", err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("notarization status poll failed: %s: %s", resp.Status(), resp.String())
		}
		if terminalStatuses[status.Status] {
			logger.Info("Notarization reached terminal status.", "submission_id", created.ID, "status", status.Status)
			return &Verdict{SubmissionID: created.ID, Status: status.Status, Log: status.Log}, nil
		}
		logger.Debug("Notarization still in progress.", "submission_id", created.ID, "status", status.Status)
	}
}
