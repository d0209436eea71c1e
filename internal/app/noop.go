package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/buildexec"
	"github.com/vk/shipgridgo/internal/cachekey"
	"github.com/vk/shipgridgo/internal/notary"
	"github.com/vk/shipgridgo/internal/publish"
	"github.com/vk/shipgridgo/internal/secrets"
)

// Dry-run collaborators. They exercise the full stage graph without
// touching a build tool, a keychain, or the network.

// dryRunMaterial is a synthetic secret bundle so tag-triggered dry runs
// pass credential checks without reading real secrets.
func dryRunMaterial() *secrets.Material {
	return &secrets.Material{
		SigningCertificate:  []byte("dry-run"),
		CertificatePassword: "dry-run",
		KeychainPassword:    "dry-run",
		NotaryUser:          "dry-run",
		NotaryPassword:      "dry-run",
		TeamID:              "DRYRUN",
		IdentityToken:       "",
		ReleaseToken:        "dry-run",
	}
}

type nopKeychain struct{}

func (nopKeychain) Service() string { return "dry-run" }
func (nopKeychain) Teardown() error { return nil }

// nopProvision replaces OS keychain provisioning in dry runs.
func nopProvision(context.Context, *secrets.Material, time.Duration) (notary.KeychainRef, error) {
	return nopKeychain{}, nil
}

type nopResolver struct{}

func (*nopResolver) ResolvePlan(_ context.Context, req buildexec.Request) ([]cachekey.ResolvedPackage, error) {
	return []cachekey.ResolvedPackage{
		{ID: "example.dependency/1.0.0"},
		{ID: "example.runtime/" + req.Toolchain.Version},
	}, nil
}

type nopBuilder struct{}

func (*nopBuilder) Build(_ context.Context, req buildexec.Request) (artifact.Set, error) {
	set := make(artifact.Set, len(artifact.Kinds))
	for _, kind := range artifact.Kinds {
		path := filepath.Join(req.OutputDir, string(kind))
		content := fmt.Sprintf("placeholder %s %s %s\n", kind, req.Platform.Name(), req.VersionInputs.Version)
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return nil, err
		}
		set[kind] = artifact.Artifact{
			Name:     string(kind),
			Platform: req.Platform.Name(),
			Kind:     kind,
			Path:     path,
		}
	}
	return set, nil
}

type nopReporter struct {
	line string
}

func (r *nopReporter) ReportedVersion(context.Context, string) (string, error) {
	return r.line, nil
}

type nopSigner struct{}

func (*nopSigner) Sign(context.Context, string, notary.SignOptions) error {
	return nil
}

type nopSubmitClient struct{}

func (*nopSubmitClient) Submit(context.Context, string, *secrets.Material) (*notary.Verdict, error) {
	return &notary.Verdict{SubmissionID: "dry-run", Status: "Accepted", Log: "status: Accepted"}, nil
}

// nopBlobSigner echoes the identity the pipeline expects, so dry runs
// exercise the verification path without tripping it.
type nopBlobSigner struct {
	identity string
}

func (s *nopBlobSigner) Sign(_ context.Context, blobPath, _ string) (*publish.SigningBundle, error) {
	return &publish.SigningBundle{
		ArtifactRef:    blobPath,
		SignatureBlob:  []byte("dry-run"),
		SignerIdentity: s.identity,
	}, nil
}

func (*nopBlobSigner) Verify(_ context.Context, _ string, b *publish.SigningBundle) (string, error) {
	return b.SignerIdentity, nil
}

type nopReleaseAPI struct{}

func (*nopReleaseAPI) CreateDraft(_ context.Context, _, _, versionValue string, assetPaths []string) (*publish.Release, error) {
	return &publish.Release{
		Version: versionValue,
		Draft:   true,
		Assets:  append([]string(nil), assetPaths...),
	}, nil
}
