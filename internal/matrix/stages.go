package matrix

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/buildexec"
	"github.com/vk/shipgridgo/internal/bundle"
	"github.com/vk/shipgridgo/internal/cachekey"
	"github.com/vk/shipgridgo/internal/checksum"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/dag"
	"github.com/vk/shipgridgo/internal/version"
)

// jobRun holds the stage closures' shared context for one platform job.
// The chain runs its stages strictly in order, so fields are written and
// read without locking.
type jobRun struct {
	deps     Deps
	model    *config.Model
	job      *BuildJob
	version  version.ReleaseVersion
	tagBuild bool
	runID    string
	workDir  string
}

// instrument wraps a stage function with job status bookkeeping: the first
// stage flips the job to running, a stage error finishes it as failed.
func (r *jobRun) instrument(name string, fn dag.StageFunc) dag.StageFunc {
	return func(ctx context.Context) error {
		logger := ctxlog.FromContext(ctx).With("job", r.job.Platform.Name(), "stage", name)
		ctx = ctxlog.WithLogger(ctx, logger)

		r.job.setRunning()
		if err := fn(ctx); err != nil {
			r.job.finish(Failed, err)
			return fmt.Errorf("%s/%s: %w", r.job.Platform.Name(), name, err)
		}
		return nil
	}
}

// buildRequest assembles the build tool invocation shared by the resolve
// and build stages. The version inputs ride along as explicit compilation
// inputs so the version unit is refreshed on every run.
func (r *jobRun) buildRequest() buildexec.Request {
	return buildexec.Request{
		Platform:    r.job.Platform,
		Toolchain:   r.job.Toolchain,
		ProjectFile: r.job.Platform.ProjectFile,
		OutputDir:   filepath.Join(r.workDir, "out"),
		VersionInputs: buildexec.VersionInputs{
			Version:      r.version.Value,
			CommitPrefix: r.version.CommitPrefix12,
			RunID:        r.runID,
		},
	}
}

// stageCacheKey resolves the dependency plan, derives the cache key, and
// restores the closest available prior cache.
func (r *jobRun) stageCacheKey(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if err := ensureDirs(r.workDir, filepath.Join(r.workDir, "packages"), filepath.Join(r.workDir, "out"), filepath.Join(r.workDir, "dist")); err != nil {
		return fmt.Errorf("failed to prepare work directory: %w", err)
	}

	plan, err := r.deps.Resolver.ResolvePlan(ctx, r.buildRequest())
	if err != nil {
		return fmt.Errorf("failed to resolve dependency plan: %w", err)
	}
	r.job.CacheKey = cachekey.Derive(plan)

	lookup := cachekey.Lookup{
		Platform:  r.job.Platform.Name(),
		Toolchain: r.job.Toolchain.Version,
		Key:       r.job.CacheKey,
	}
	hit, ok, err := r.deps.Cache.Restore(ctx, lookup.FallbackChain(), filepath.Join(r.workDir, "packages"))
	if err != nil {
		return fmt.Errorf("cache restore failed: %w", err)
	}
	if ok {
		r.job.CacheHit = hit
		logger.Info("Dependency cache restored.", "key", hit)
	} else {
		logger.Info("Dependency cache miss.", "key", lookup.Exact())
	}
	return nil
}

// stageBuild runs the build with the bounded retry policy, then saves the
// dependency cache under the exact key if this run missed it.
func (r *jobRun) stageBuild(ctx context.Context) error {
	executor := buildexec.New(r.deps.Builder)
	set, attempts, err := executor.Run(ctx, r.buildRequest())
	r.job.Attempts = attempts
	if err != nil {
		return err
	}
	r.job.Binaries = set

	lookup := cachekey.Lookup{
		Platform:  r.job.Platform.Name(),
		Toolchain: r.job.Toolchain.Version,
		Key:       r.job.CacheKey,
	}
	if r.job.CacheHit != lookup.Exact() {
		if err := r.deps.Cache.Save(ctx, lookup.Exact(), filepath.Join(r.workDir, "packages")); err != nil {
			// A failed cache save costs the next run time, not correctness.
			ctxlog.FromContext(ctx).Warn("Failed to save dependency cache.", "error", err)
		}
	}
	return nil
}

// stageSign drives the signing/notarization machine. Entered only for
// macOS platforms on tag-triggered runs; everything else passes through.
func (r *jobRun) stageSign(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if r.job.Platform.OS != "osx" || !r.tagBuild {
		logger.Debug("Signing not applicable, passing through.", "os", r.job.Platform.OS, "tag_build", r.tagBuild)
		return nil
	}
	if r.deps.NewNotary == nil {
		return fmt.Errorf("signing required for %s but no notary is configured", r.job.Platform.Name())
	}

	machine := r.deps.NewNotary()
	verdict, err := machine.Run(ctx, r.job.Binaries, r.job.Platform.Arch, r.deps.Material)
	r.job.Verdict = verdict
	if err != nil {
		return err
	}
	return nil
}

// stageBundle verifies the embedded version string (tag builds only), then
// assembles the platform's archives.
func (r *jobRun) stageBundle(ctx context.Context) error {
	if r.tagBuild {
		expected := version.EmbeddedString(r.model.Tool, r.version, r.job.Toolchain.MajorMinor())
		primary := r.job.Binaries[artifact.PrimaryCLI]
		if err := bundle.VerifyEmbeddedVersion(ctx, r.deps.Reporter, primary.Path, expected); err != nil {
			return err
		}
	}

	archives, err := r.deps.Bundler.Bundle(ctx, r.job.Binaries, r.version.Value, r.job.Platform, filepath.Join(r.workDir, "dist"))
	if err != nil {
		return err
	}
	r.job.Archives = archives
	return nil
}

// stageChecksum writes a sha256 sidecar per archive and self-verifies every
// sidecar before the job is allowed to upload anything.
func (r *jobRun) stageChecksum(ctx context.Context) error {
	var sidecars []string
	for _, a := range r.job.Archives {
		record, sidecar, err := checksum.Write(a.Path)
		if err != nil {
			return err
		}
		r.job.Checksums = append(r.job.Checksums, record)
		sidecars = append(sidecars, sidecar)
	}
	if err := checksum.VerifyAll(sidecars); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Checksums written and self-verified.", "count", len(sidecars))
	return nil
}

// stageUpload pushes the job's artifact set to the store under the
// platform's name: archives, sidecars, and the raw binaries the publisher
// signs later. Success here is the job's terminal success.
func (r *jobRun) stageUpload(ctx context.Context) error {
	prefix := r.job.Platform.Name() + "/"
	for _, a := range r.job.Archives {
		if err := r.deps.Store.Upload(ctx, prefix+filepath.Base(a.Path), a.Path); err != nil {
			return err
		}
		if err := r.deps.Store.Upload(ctx, prefix+filepath.Base(a.Path)+".sha256", a.Path+".sha256"); err != nil {
			return err
		}
	}
	for _, kind := range artifact.Kinds {
		bin := r.job.Binaries[kind]
		if err := r.deps.Store.Upload(ctx, prefix+"bin/"+filepath.Base(bin.Path), bin.Path); err != nil {
			return err
		}
	}

	r.job.finish(Succeeded, nil)
	ctxlog.FromContext(ctx).Info("Platform job succeeded.", "attempts", r.job.Attempts, "archives", len(r.job.Archives))
	return nil
}
