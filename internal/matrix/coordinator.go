// Package matrix fans out one independent build job per platform and gates
// the publish stage on every job succeeding. Jobs share nothing mutable
// beyond the content-addressed cache and artifact stores.
package matrix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vk/shipgridgo/internal/artifactstore"
	"github.com/vk/shipgridgo/internal/buildexec"
	"github.com/vk/shipgridgo/internal/bundle"
	"github.com/vk/shipgridgo/internal/cachestore"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/dag"
	"github.com/vk/shipgridgo/internal/notary"
	"github.com/vk/shipgridgo/internal/secrets"
	"github.com/vk/shipgridgo/internal/version"
)

// Deps are the collaborators a coordinator wires into every job's stages.
type Deps struct {
	Resolver buildexec.Resolver
	Builder  buildexec.Builder
	Cache    cachestore.Store
	Store    artifactstore.Store
	Bundler  *bundle.Bundler
	Reporter bundle.VersionReporter

	// NewNotary creates a fresh signing/notarization machine for one job.
	// Nil disables the signing path entirely (non-tag runs don't need it).
	NewNotary func() *notary.Machine
	Material  *secrets.Material

	// WorkDir is the scratch root; each job owns a subdirectory of it.
	WorkDir string
}

// PublishFunc is the aggregation stage invoked behind the all-succeeded
// join. It never runs if any platform job failed.
type PublishFunc func(ctx context.Context, jobs []*BuildJob) error

// Coordinator builds and runs the stage graph for one pipeline run.
type Coordinator struct {
	deps    Deps
	model   *config.Model
	workers int
}

// New creates a coordinator.
func New(deps Deps, model *config.Model, workers int) *Coordinator {
	return &Coordinator{deps: deps, model: model, workers: workers}
}

// Run executes the full matrix and, behind the join, the publish stage.
// It always returns the jobs with their terminal states, even on failure.
func (c *Coordinator) Run(ctx context.Context, rv version.ReleaseVersion, tagBuild bool, publish PublishFunc) ([]*BuildJob, error) {
	logger := ctxlog.FromContext(ctx)
	runID := uuid.NewString()
	logger.Info("Starting matrix run.", "run_id", runID, "platforms", len(c.model.Platforms), "tag_build", tagBuild)

	graph := dag.New()
	jobs := make([]*BuildJob, 0, len(c.model.Platforms))

	for _, platform := range c.model.Platforms {
		job := &BuildJob{
			ID:        uuid.NewString(),
			Platform:  platform,
			Toolchain: c.model.ToolchainFor(platform),
		}
		jobs = append(jobs, job)

		run := &jobRun{
			deps:     c.deps,
			model:    c.model,
			job:      job,
			version:  rv,
			tagBuild: tagBuild,
			runID:    runID,
			workDir:  filepath.Join(c.deps.WorkDir, platform.Name()),
		}

		if err := c.addJobChain(graph, job, run); err != nil {
			return jobs, err
		}
	}

	// The publish node is the fan-in join: it depends on every platform
	// chain's terminal stage, so it runs only when all jobs succeeded.
	publishID := "publish.gate"
	if _, err := graph.AddNode(publishID, func(ctx context.Context) error {
		return publish(ctx, jobs)
	}); err != nil {
		return jobs, err
	}
	for _, platform := range c.model.Platforms {
		if err := graph.AddEdge(stageID(platform, "upload"), publishID); err != nil {
			return jobs, err
		}
	}

	if err := graph.Finalize(); err != nil {
		return jobs, fmt.Errorf("failed to build stage graph: %w", err)
	}

	execErr := dag.NewExecutor(graph, c.workers).Run(ctx)

	// Jobs whose chain never finished (skipped stages) are failed now;
	// successful chains were finished by their upload stage.
	for _, job := range jobs {
		if job.Status() == Succeeded || job.Status() == Failed {
			continue
		}
		job.finish(Failed, job.Err)
	}
	return jobs, execErr
}

// stageID names a stage node for a platform.
func stageID(p *config.Platform, stage string) string {
	return fmt.Sprintf("job.%s.%s", p.Name(), stage)
}

// addJobChain wires one platform's stage chain into the graph:
// cachekey -> build -> sign -> bundle -> checksum -> upload.
func (c *Coordinator) addJobChain(graph *dag.Graph, job *BuildJob, run *jobRun) error {
	stages := []struct {
		name string
		fn   dag.StageFunc
	}{
		{"cachekey", run.stageCacheKey},
		{"build", run.stageBuild},
		{"sign", run.stageSign},
		{"bundle", run.stageBundle},
		{"checksum", run.stageChecksum},
		{"upload", run.stageUpload},
	}

	prev := ""
	for _, s := range stages {
		id := stageID(job.Platform, s.name)
		fn := run.instrument(s.name, s.fn)
		if _, err := graph.AddNode(id, fn); err != nil {
			return err
		}
		if prev != "" {
			if err := graph.AddEdge(prev, id); err != nil {
				return err
			}
		}
		prev = id
	}
	return nil
}

// ensureDirs creates a job's scratch directories.
func ensureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
