package app

import (
	"context"
	"fmt"

	"github.com/vk/shipgridgo/internal/artifactstore"
	"github.com/vk/shipgridgo/internal/buildexec"
	"github.com/vk/shipgridgo/internal/bundle"
	"github.com/vk/shipgridgo/internal/cachestore"
	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/matrix"
	"github.com/vk/shipgridgo/internal/notary"
	"github.com/vk/shipgridgo/internal/publish"
	"github.com/vk/shipgridgo/internal/secrets"
	"github.com/vk/shipgridgo/internal/version"
)

// Run executes one full pipeline run: fan out the platform matrix, join,
// and publish (or store for manual retrieval).
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	rv, tagBuild := version.Compute(a.trigger.Ref, a.trigger.Commit)
	a.logger.Info("Release version computed.",
		"version", rv.Value, "ref", rv.SourceRef, "commit_prefix", rv.CommitPrefix12, "tag_build", tagBuild)

	var material *secrets.Material
	if a.config.DryRun {
		material = dryRunMaterial()
	} else {
		var err error
		material, err = secrets.Load()
		if err != nil {
			return fmt.Errorf("failed to load secret material: %w", err)
		}
	}

	cache, err := cachestore.NewFSStore(a.config.CacheDir)
	if err != nil {
		return err
	}
	store, err := artifactstore.ForURL(a.config.StoreURL)
	if err != nil {
		return err
	}

	deps := matrix.Deps{
		Cache:    cache,
		Store:    store,
		Bundler:  &bundle.Bundler{},
		Material: material,
		WorkDir:  a.config.WorkDir,
	}
	var publisher *publish.Publisher

	if a.config.DryRun {
		a.logger.Info("Dry run: external collaborators replaced with no-ops.")
		expected := version.EmbeddedString(a.model.Tool, rv, a.model.Toolchain.MajorMinor())
		deps.Resolver = &nopResolver{}
		deps.Builder = &nopBuilder{}
		deps.Reporter = &nopReporter{line: expected}
		deps.NewNotary = func() *notary.Machine {
			machine := notary.NewMachine(&nopSigner{}, &nopSubmitClient{}, "dry-run")
			machine.Provision = nopProvision
			return machine
		}
		signerIdentity := "dry-run"
		if a.model.Publish != nil {
			signerIdentity = a.model.Publish.SignerIdentity
		}
		publisher = publish.New(store, &nopBlobSigner{identity: signerIdentity}, &nopReleaseAPI{}, material, a.config.WorkDir)
	} else {
		deps.Resolver = &buildexec.LockfileResolver{}
		deps.Builder = &buildexec.CommandBuilder{Executable: a.config.BuildExecutable}
		deps.Reporter = bundle.CommandVersionReporter{}
		if tagBuild {
			notaryClient := notary.NewClient(a.config.NotaryURL)
			defer notaryClient.Close()
			deps.NewNotary = func() *notary.Machine {
				return notary.NewMachine(&notary.CommandSigner{}, notaryClient, material.TeamID)
			}

			if err := material.RequireRelease(); err != nil {
				return fmt.Errorf("cannot publish a tag build: %w", err)
			}
			signClient := publish.NewSignClient(a.config.SignURL)
			defer signClient.Close()
			releaseClient := publish.NewReleaseClient(a.config.ReleaseURL, material.ReleaseToken)
			defer releaseClient.Close()
			publisher = publish.New(store, signClient, releaseClient, material, a.config.WorkDir)
		} else {
			publisher = publish.New(store, nil, nil, material, a.config.WorkDir)
		}
	}

	coordinator := matrix.New(deps, a.model, a.config.WorkerCount)
	jobs, runErr := coordinator.Run(ctx, rv, tagBuild, func(ctx context.Context, jobs []*matrix.BuildJob) error {
		_, err := publisher.Publish(ctx, a.model, rv, tagBuild, jobs)
		return err
	})

	a.logSummary(jobs)
	if runErr != nil {
		return fmt.Errorf("pipeline run failed: %w", runErr)
	}
	a.logger.Info("Pipeline run finished.", "version", rv.Value, "tag_build", tagBuild)
	return nil
}

// logSummary prints one outcome line per job.
func (a *App) logSummary(jobs []*matrix.BuildJob) {
	for _, job := range jobs {
		attrs := []any{
			"platform", job.Platform.Name(),
			"status", job.Status().String(),
			"attempts", job.Attempts,
			"cache_hit", job.CacheHit,
			"archives", len(job.Archives),
		}
		if job.Err != nil {
			attrs = append(attrs, "error", job.Err)
		}
		a.logger.Info("Job summary.", attrs...)
	}
}
