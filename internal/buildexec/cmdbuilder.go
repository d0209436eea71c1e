package buildexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/cachekey"
	"github.com/vk/shipgridgo/internal/ctxlog"
)

// CommandBuilder invokes the managed-runtime build tool as a subprocess.
// The version inputs are forwarded as build properties so the version unit
// is recompiled whenever they change.
type CommandBuilder struct {
	// Executable is the build tool binary, e.g. "dotnet".
	Executable string
}

// Build implements Builder.
func (b *CommandBuilder) Build(ctx context.Context, req Request) (artifact.Set, error) {
	logger := ctxlog.FromContext(ctx)

	rid := req.Platform.OS + "-" + req.Platform.Arch
	args := []string{
		"publish", req.ProjectFile,
		"--output", req.OutputDir,
		"--runtime", rid,
		fmt.Sprintf("-p:Version=%s", req.VersionInputs.Version),
		fmt.Sprintf("-p:SourceRevisionId=%s", req.VersionInputs.CommitPrefix),
		fmt.Sprintf("-p:PipelineRunId=%s", req.VersionInputs.RunID),
	}
	logger.Debug("Invoking build tool.", "executable", b.Executable, "args", args)

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("build tool failed: %w\n%s", err, out)
	}

	set := make(artifact.Set, len(artifact.Kinds))
	for _, kind := range artifact.Kinds {
		path := filepath.Join(req.OutputDir, binaryFileName(kind, req.Platform.OS))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("build did not produce %q: %w", path, err)
		}
		set[kind] = artifact.Artifact{
			Name:     filepath.Base(path),
			Platform: req.Platform.Name(),
			Kind:     kind,
			Path:     path,
		}
	}
	return set, nil
}

// binaryFileName maps a binary kind to the file the build tool emits.
func binaryFileName(kind artifact.Kind, osName string) string {
	name := string(kind)
	if osName == "win" {
		name += ".exe"
	}
	return name
}

// LockfileResolver reads the resolved dependency plan from the lock file
// the build tool writes next to the project file. The lock file pins every
// transitive package, which is exactly the input the cache key needs.
type LockfileResolver struct {
	// LockFileName defaults to "packages.lock.json" when empty.
	LockFileName string
}

type lockfileSchema struct {
	Packages []struct {
		ID      string `json:"id"`
		Version string `json:"version"`
	} `json:"packages"`
}

// ResolvePlan implements Resolver.
func (r *LockfileResolver) ResolvePlan(ctx context.Context, req Request) ([]cachekey.ResolvedPackage, error) {
	name := r.LockFileName
	if name == "" {
		name = "packages.lock.json"
	}
	path := filepath.Join(filepath.Dir(req.ProjectFile), name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file %q: %w", path, err)
	}
	var lock lockfileSchema
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to decode lock file %q: %w", path, err)
	}

	plan := make([]cachekey.ResolvedPackage, 0, len(lock.Packages))
	for _, p := range lock.Packages {
		plan = append(plan, cachekey.ResolvedPackage{ID: p.ID + "/" + p.Version})
	}
	ctxlog.FromContext(ctx).Debug("Resolved dependency plan.", "lockfile", path, "packages", len(plan))
	return plan, nil
}
