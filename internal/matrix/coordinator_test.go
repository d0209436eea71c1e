package matrix

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/artifactstore"
	"github.com/vk/shipgridgo/internal/buildexec"
	"github.com/vk/shipgridgo/internal/bundle"
	"github.com/vk/shipgridgo/internal/cachekey"
	"github.com/vk/shipgridgo/internal/cachestore"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/version"
)

type stubResolver struct{}

func (stubResolver) ResolvePlan(context.Context, buildexec.Request) ([]cachekey.ResolvedPackage, error) {
	return []cachekey.ResolvedPackage{{ID: "example/1.0.0"}}, nil
}

// stubBuilder writes placeholder binaries, failing permanently for the
// platforms listed in failOS.
type stubBuilder struct {
	failOS map[string]bool
}

func (b *stubBuilder) Build(_ context.Context, req buildexec.Request) (artifact.Set, error) {
	if b.failOS[req.Platform.OS] {
		return nil, errors.New("compiler exploded")
	}
	set := make(artifact.Set, len(artifact.Kinds))
	for _, kind := range artifact.Kinds {
		path := filepath.Join(req.OutputDir, string(kind))
		if err := os.WriteFile(path, []byte(string(kind)), 0o755); err != nil {
			return nil, err
		}
		set[kind] = artifact.Artifact{Name: string(kind), Platform: req.Platform.Name(), Kind: kind, Path: path}
	}
	return set, nil
}

func testModel() *config.Model {
	return &config.Model{
		Tool:      "shiptool",
		Toolchain: &config.Toolchain{Name: "dotnet", Version: "8.0.100"},
		Platforms: []*config.Platform{
			{OS: "linux", Arch: "x64", ProjectFile: "src/tool.csproj"},
			{OS: "win", Arch: "x64", ProjectFile: "src/tool.csproj"},
		},
	}
}

func testDeps(t *testing.T, builder buildexec.Builder) Deps {
	t.Helper()
	cache, err := cachestore.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store, err := artifactstore.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return Deps{
		Resolver: stubResolver{},
		Builder:  builder,
		Cache:    cache,
		Store:    store,
		Bundler:  &bundle.Bundler{},
		WorkDir:  t.TempDir(),
	}
}

func TestRun_AllJobsSucceedThenPublishRuns(t *testing.T) {
	deps := testDeps(t, &stubBuilder{})
	rv, _ := version.Compute("refs/heads/main", "abcdef0123456789")

	var published atomic.Bool
	coordinator := New(deps, testModel(), 4)
	jobs, err := coordinator.Run(context.Background(), rv, false, func(_ context.Context, jobs []*BuildJob) error {
		published.Store(true)
		assert.Len(t, jobs, 2)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, published.Load(), "publish must run behind the all-succeeded join")
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, Succeeded, job.Status(), job.Platform.Name())
		assert.NotEmpty(t, job.CacheKey.Hash)
		assert.Equal(t, 1, job.Attempts)
		assert.NotEmpty(t, job.Archives)
		assert.NotEmpty(t, job.Checksums)
	}

	// Linux ships both formats, windows zip only.
	byOS := make(map[string]int)
	for _, job := range jobs {
		byOS[job.Platform.OS] = len(job.Archives)
	}
	assert.Equal(t, 6, byOS["linux"])
	assert.Equal(t, 3, byOS["win"])
}

func TestRun_OneFailureSkipsPublishButNotSiblings(t *testing.T) {
	deps := testDeps(t, &stubBuilder{failOS: map[string]bool{"linux": true}})
	rv, _ := version.Compute("refs/heads/main", "abcdef0123456789")

	var published atomic.Bool
	coordinator := New(deps, testModel(), 4)
	jobs, err := coordinator.Run(context.Background(), rv, false, func(context.Context, []*BuildJob) error {
		published.Store(true)
		return nil
	})

	require.Error(t, err)
	assert.False(t, published.Load(), "publish must never run when any job failed")

	byOS := make(map[string]*BuildJob)
	for _, job := range jobs {
		byOS[job.Platform.OS] = job
	}
	assert.Equal(t, Failed, byOS["linux"].Status())
	assert.Error(t, byOS["linux"].Err)

	// The sibling chain is not cancelled; it runs to its own success.
	assert.Equal(t, Succeeded, byOS["win"].Status())
	assert.NoError(t, byOS["win"].Err)
}

func TestRun_FailedBuildRecordsBothAttempts(t *testing.T) {
	deps := testDeps(t, &stubBuilder{failOS: map[string]bool{"linux": true, "win": true}})
	rv, _ := version.Compute("refs/heads/main", "abcdef0123456789")

	jobs, err := New(deps, testModel(), 2).Run(context.Background(), rv, false, func(context.Context, []*BuildJob) error {
		t.Error("publish must not run")
		return nil
	})

	require.Error(t, err)
	for _, job := range jobs {
		assert.Equal(t, Failed, job.Status())
		assert.Equal(t, 2, job.Attempts, "the fixed retry budget is two attempts")
	}
}

func TestRun_UploadedArtifactSetIsComplete(t *testing.T) {
	deps := testDeps(t, &stubBuilder{})
	rv, _ := version.Compute("refs/heads/main", "abcdef0123456789")

	_, err := New(deps, testModel(), 4).Run(context.Background(), rv, false, func(context.Context, []*BuildJob) error {
		return nil
	})
	require.NoError(t, err)

	names, err := deps.Store.List(context.Background(), "linux-x64/")
	require.NoError(t, err)
	// 6 archives + 6 sidecars + 3 raw binaries.
	assert.Len(t, names, 15)
	assert.Contains(t, names, "linux-x64/bin/primary-cli")
	assert.Contains(t, names, "linux-x64/primary-cli_"+rv.Value+"_linux_x64.zip.sha256")
}

func TestRun_SignStagePassesThroughOffTag(t *testing.T) {
	deps := testDeps(t, &stubBuilder{})
	// No NewNotary configured; a non-tag run must not need one, even for osx.
	model := testModel()
	model.Platforms = append(model.Platforms, &config.Platform{OS: "osx", Arch: "arm64", ProjectFile: "src/tool.csproj"})
	rv, _ := version.Compute("refs/heads/main", "abcdef0123456789")

	jobs, err := New(deps, model, 4).Run(context.Background(), rv, false, func(context.Context, []*BuildJob) error {
		return nil
	})
	require.NoError(t, err)
	for _, job := range jobs {
		assert.Equal(t, Succeeded, job.Status())
		assert.Nil(t, job.Verdict)
	}
}
