// Package publish is the aggregation stage behind the all-succeeded join:
// it collects every platform's artifact set, signs the Linux binaries
// through the transparency log, verifies the signatures before trusting
// them, and creates the draft release. On non-tag triggers it only records
// the artifact set for manual retrieval.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/artifactstore"
	"github.com/vk/shipgridgo/internal/bundle"
	"github.com/vk/shipgridgo/internal/checksum"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/matrix"
	"github.com/vk/shipgridgo/internal/secrets"
	"github.com/vk/shipgridgo/internal/version"
)

// Publisher aggregates platform outputs into one release.
type Publisher struct {
	store    artifactstore.Store
	signer   BlobSigner
	releases ReleaseAPI
	material *secrets.Material
	workDir  string
}

// New creates a publisher. signer and releases may be nil for runs that can
// never publish (non-tag triggers).
func New(store artifactstore.Store, signer BlobSigner, releases ReleaseAPI, material *secrets.Material, workDir string) *Publisher {
	return &Publisher{store: store, signer: signer, releases: releases, material: material, workDir: workDir}
}

// Publish runs the aggregation stage. It is only ever invoked when every
// platform job succeeded. Returns the created release, or nil on non-tag
// runs.
func (p *Publisher) Publish(ctx context.Context, model *config.Model, rv version.ReleaseVersion, tagBuild bool, jobs []*matrix.BuildJob) (*Release, error) {
	logger := ctxlog.FromContext(ctx)

	if !tagBuild {
		return nil, p.recordForManualRetrieval(ctx, rv, jobs)
	}
	if model.Publish == nil {
		return nil, fmt.Errorf("tag build but the pipeline has no publish block")
	}
	if p.signer == nil || p.releases == nil {
		return nil, fmt.Errorf("tag build but signing/release clients are not configured")
	}

	stagingDir := filepath.Join(p.workDir, "release")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, err
	}

	// Aggregate: pull every platform's uploaded artifact set back from the
	// store. The store, not job memory, is the contract between the two
	// pipeline phases.
	local := make(map[string]string) // blob name -> local path
	for _, job := range jobs {
		names, err := p.store.List(ctx, job.Platform.Name()+"/")
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts for %s: %w", job.Platform.Name(), err)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no stored artifacts for succeeded job %s", job.Platform.Name())
		}
		platformDir := filepath.Join(stagingDir, job.Platform.Name())
		if err := os.MkdirAll(filepath.Join(platformDir, "bin"), 0o755); err != nil {
			return nil, err
		}
		for _, name := range names {
			destDir := platformDir
			if strings.Contains(name, "/bin/") {
				destDir = filepath.Join(platformDir, "bin")
			}
			path, err := p.store.Download(ctx, name, destDir)
			if err != nil {
				return nil, err
			}
			local[name] = path
		}
	}

	// Cross-check the release version: every platform must have produced
	// archives named for exactly this version.
	if err := crossCheckVersion(rv, jobs, local); err != nil {
		return nil, err
	}

	bundlePaths, err := p.signLinuxBinaries(ctx, model, jobs, local)
	if err != nil {
		return nil, err
	}

	// Create the draft release with all archives, checksum sidecars, and
	// signature bundles. Draft is the terminal state here; promotion is a
	// human decision.
	var assets []string
	for name, path := range local {
		if strings.Contains(name, "/bin/") {
			continue
		}
		assets = append(assets, path)
	}
	assets = append(assets, bundlePaths...)
	sort.Strings(assets)

	release, err := p.releases.CreateDraft(ctx, model.Publish.Owner, model.Publish.Repository, rv.Value, assets)
	if err != nil {
		return nil, err
	}
	logger.Info("Release published as draft.", "version", rv.Value, "assets", len(assets))
	return release, nil
}

// signLinuxBinaries signs each Linux binary through the transparency log,
// re-verifies every signature against the expected signer identity, appends
// the bundle into both archive formats for that binary, and refreshes the
// checksums the appends invalidated.
func (p *Publisher) signLinuxBinaries(ctx context.Context, model *config.Model, jobs []*matrix.BuildJob, local map[string]string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	expected := model.Publish.SignerIdentity
	if derived := ExpectedIdentity(p.material.IdentityToken); derived != "" {
		expected = derived
	}
	if expected == "" {
		return nil, fmt.Errorf("no expected signer identity available")
	}

	var bundlePaths []string
	for _, job := range jobs {
		if job.Platform.OS != "linux" {
			continue
		}
		prefix := job.Platform.Name() + "/"

		for _, kind := range artifact.Kinds {
			bin, ok := job.Binaries[kind]
			if !ok {
				return nil, fmt.Errorf("job %s has no %s binary recorded", job.Platform.Name(), kind)
			}
			// The upload stage stores each binary under its file's base
			// name, so that is the name to look it up by.
			binName := filepath.Base(bin.Path)
			binPath, ok := local[prefix+"bin/"+binName]
			if !ok {
				return nil, fmt.Errorf("stored binary %q missing for %s", binName, job.Platform.Name())
			}

			sb, err := p.signer.Sign(ctx, binPath, p.material.IdentityToken)
			if err != nil {
				return nil, err
			}
			// Close the signing-to-use gap: verify before anything
			// downstream trusts the bundle.
			identity, err := p.signer.Verify(ctx, binPath, sb)
			if err != nil {
				return nil, err
			}
			if identity != expected {
				return nil, &VerificationError{ArtifactRef: binName, Expected: expected, Got: identity}
			}

			bundlePath, err := WriteBundle(sb, binPath)
			if err != nil {
				return nil, err
			}
			bundlePaths = append(bundlePaths, bundlePath)
			logger.Debug("Binary signed and verified.", "binary", binName, "identity", identity)

			// The bundle ships inside every archive of this binary, both
			// formats, so offline consumers get it alongside the binary.
			for _, name := range archivesForKind(local, prefix, kind) {
				archivePath := local[name]
				if err := bundle.AppendFile(archivePath, bundlePath); err != nil {
					return nil, fmt.Errorf("failed to append bundle into %q: %w", name, err)
				}
				// The append finalized a new archive; its checksum must be
				// regenerated and re-verified before use.
				if _, sidecar, err := checksum.Write(archivePath); err != nil {
					return nil, err
				} else if err := checksum.Verify(sidecar); err != nil {
					return nil, err
				}
			}
		}
	}
	return bundlePaths, nil
}

// archivesForKind returns the stored archive names for one binary kind of
// one platform.
func archivesForKind(local map[string]string, prefix string, kind artifact.Kind) []string {
	var names []string
	for name := range local {
		if !strings.HasPrefix(name, prefix) || strings.Contains(name, "/bin/") || strings.HasSuffix(name, ".sha256") {
			continue
		}
		if strings.HasPrefix(filepath.Base(name), string(kind)+"_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// crossCheckVersion asserts every platform's stored archives are named for
// the version this run is releasing.
func crossCheckVersion(rv version.ReleaseVersion, jobs []*matrix.BuildJob, local map[string]string) error {
	for _, job := range jobs {
		prefix := job.Platform.Name() + "/"
		found := false
		for name := range local {
			if strings.HasPrefix(name, prefix) && strings.Contains(name, "_"+rv.Value+"_") {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no archive for version %q found in %s artifact set", rv.Value, job.Platform.Name())
		}
	}
	return nil
}

// recordForManualRetrieval is the non-tag path: no signing, no release.
// The per-platform artifact sets are already in the store; a run-scoped
// manifest makes them findable by hand.
func (p *Publisher) recordForManualRetrieval(ctx context.Context, rv version.ReleaseVersion, jobs []*matrix.BuildJob) error {
	logger := ctxlog.FromContext(ctx)

	var lines []string
	for _, job := range jobs {
		names, err := p.store.List(ctx, job.Platform.Name()+"/")
		if err != nil {
			return err
		}
		lines = append(lines, names...)
	}
	sort.Strings(lines)

	manifest := filepath.Join(p.workDir, "manifest.txt")
	if err := os.WriteFile(manifest, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return err
	}
	name := "runs/" + rv.CommitPrefix12 + "/manifest.txt"
	if err := p.store.Upload(ctx, name, manifest); err != nil {
		return err
	}
	logger.Info("Non-tag trigger: artifacts stored for manual retrieval.", "manifest", name, "artifacts", len(lines))
	return nil
}
