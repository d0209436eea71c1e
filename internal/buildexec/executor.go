// Package buildexec runs the platform build through an opaque build tool,
// with a fixed bounded retry policy and explicit version-metadata inputs.
package buildexec

import (
	"context"
	"fmt"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/cachekey"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
)

// maxAttempts is the total attempt budget: the identical command is retried
// exactly once. The dominant failure mode is transient resource exhaustion,
// so the retry is immediate with no backoff. Not configurable.
const maxAttempts = 2

// VersionInputs are the version-metadata values passed to the build as
// explicit compilation inputs. Because they participate in the build tool's
// invalidation, the version unit recompiles whenever the release version or
// commit changes, without touching any tracked file.
type VersionInputs struct {
	Version      string
	CommitPrefix string
	// RunID is a per-run identifier, mostly useful for tracing a binary
	// back to the run that produced it.
	RunID string
}

// Request describes one platform build.
type Request struct {
	Platform      *config.Platform
	Toolchain     *config.Toolchain
	ProjectFile   string
	OutputDir     string
	VersionInputs VersionInputs
}

// Builder is the opaque compilation engine. It produces the three release
// binaries for the requested platform.
type Builder interface {
	Build(ctx context.Context, req Request) (artifact.Set, error)
}

// Resolver is the opaque dependency-resolution engine. It produces the
// version-pinned installation plan the cache key is derived from.
type Resolver interface {
	ResolvePlan(ctx context.Context, req Request) ([]cachekey.ResolvedPackage, error)
}

// ExhaustedError reports a build that failed on every attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("build failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Executor wraps a Builder with the retry policy.
type Executor struct {
	builder Builder
}

// New creates an Executor around the given builder.
func New(builder Builder) *Executor {
	return &Executor{builder: builder}
}

// Run executes the build, retrying the identical request once on failure.
// It returns the produced binaries and the number of attempts made.
func (e *Executor) Run(ctx context.Context, req Request) (artifact.Set, int, error) {
	logger := ctxlog.FromContext(ctx).With("platform", req.Platform.Name())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}
		logger.Info("Starting build attempt.", "attempt", attempt)
		set, err := e.builder.Build(ctx, req)
		if err == nil {
			if verr := set.Validate(); verr != nil {
				return nil, attempt, fmt.Errorf("build produced an incomplete binary set: %w", verr)
			}
			logger.Info("Build succeeded.", "attempt", attempt)
			return set, attempt, nil
		}
		logger.Warn("Build attempt failed.", "attempt", attempt, "error", err)
		lastErr = err
	}

	return nil, maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}
