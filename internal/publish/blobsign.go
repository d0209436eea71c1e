package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"resty.dev/v3"

	"github.com/vk/shipgridgo/internal/ctxlog"
)

// SigningBundle is a detached, transparency-log-backed signature for one
// binary.
type SigningBundle struct {
	// ArtifactRef names the signed binary.
	ArtifactRef string `json:"artifact_ref"`
	// SignatureBlob is the detached signature material.
	SignatureBlob []byte `json:"signature_blob"`
	// SignerIdentity is the identity the log certified for this signature.
	SignerIdentity string `json:"signer_identity"`
	// LogIndex is the entry's position in the public transparency log.
	LogIndex int64 `json:"log_index"`
}

// VerificationError is a signature that did not verify against the
// expected signer identity. Fatal; blocks publication.
type VerificationError struct {
	ArtifactRef string
	Expected    string
	Got         string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("signature for %q verified to identity %q, expected %q", e.ArtifactRef, e.Got, e.Expected)
}

// BlobSigner signs binaries through the transparency-log service and
// verifies the resulting bundles.
type BlobSigner interface {
	Sign(ctx context.Context, blobPath, identityToken string) (*SigningBundle, error)
	Verify(ctx context.Context, blobPath string, b *SigningBundle) (identity string, err error)
}

// SignClient is the HTTP client for the transparency-log signing service.
type SignClient struct {
	rc *resty.Client
}

// NewSignClient creates a signing client for the given service base URL.
func NewSignClient(baseURL string) *SignClient {
	return &SignClient{rc: resty.New().SetBaseURL(baseURL)}
}

// Close releases the underlying HTTP client.
func (c *SignClient) Close() error {
	return c.rc.Close()
}

type signResponse struct {
	Signature string `json:"signature"`
	Identity  string `json:"identity"`
	LogIndex  int64  `json:"log_index"`
}

// Sign implements BlobSigner. The identity token authenticates the
// pipeline; the log records which identity signed what.
func (c *SignClient) Sign(ctx context.Context, blobPath, identityToken string) (*SigningBundle, error) {
	var result signResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(identityToken).
		SetFile("blob", blobPath).
		SetResult(&result).
		Post("/sign")
	if err != nil {
		return nil, fmt.Errorf("blob signing failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("blob signing failed: %s: %s", resp.Status(), resp.String())
	}

	sig, err := base64.StdEncoding.DecodeString(result.Signature)
	if err != nil {
		return nil, fmt.Errorf("blob signing returned a malformed signature: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Blob signed.", "blob", blobPath, "log_index", result.LogIndex)
	return &SigningBundle{
		ArtifactRef:    blobPath,
		SignatureBlob:  sig,
		SignerIdentity: result.Identity,
		LogIndex:       result.LogIndex,
	}, nil
}

type verifyResponse struct {
	Valid    bool   `json:"valid"`
	Identity string `json:"identity"`
}

// Verify implements BlobSigner. The service re-checks the signature against
// the blob and the log entry and returns the certified identity.
func (c *SignClient) Verify(ctx context.Context, blobPath string, b *SigningBundle) (string, error) {
	var result verifyResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetFile("blob", blobPath).
		SetMultipartField("signature", "", "application/octet-stream",
			strings.NewReader(base64.StdEncoding.EncodeToString(b.SignatureBlob))).
		SetResult(&result).
		Post("/verify")
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("signature verification failed: %s: %s", resp.Status(), resp.String())
	}
	if !result.Valid {
		return "", fmt.Errorf("signature for %q did not verify", blobPath)
	}
	return result.Identity, nil
}

// WriteBundle serializes a signing bundle to its sidecar file
// "<binary>.bundle" and returns the path.
func WriteBundle(b *SigningBundle, binaryPath string) (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", err
	}
	path := binaryPath + ".bundle"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write signature bundle: %w", err)
	}
	return path, nil
}

// ExpectedIdentity derives the signer identity this pipeline's signatures
// must verify to. The identity token is a JWT whose subject claim names
// the pipeline; a token that doesn't parse yields an empty identity, which
// callers treat as a configuration error.
func ExpectedIdentity(identityToken string) string {
	parts := strings.Split(identityToken, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	return claims.Sub
}
