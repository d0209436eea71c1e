package buildexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/config"
)

// scriptedBuilder fails for the first failures calls, then succeeds.
type scriptedBuilder struct {
	failures int
	calls    int
	requests []Request
}

func (b *scriptedBuilder) Build(_ context.Context, req Request) (artifact.Set, error) {
	b.calls++
	b.requests = append(b.requests, req)
	if b.calls <= b.failures {
		return nil, errors.New("transient resource exhaustion")
	}
	return completeSet(), nil
}

func completeSet() artifact.Set {
	set := make(artifact.Set, len(artifact.Kinds))
	for _, kind := range artifact.Kinds {
		set[kind] = artifact.Artifact{
			Name:     string(kind),
			Platform: "linux-x64",
			Kind:     kind,
			Path:     "/out/" + string(kind),
		}
	}
	return set
}

func testRequest() Request {
	return Request{
		Platform:    &config.Platform{OS: "linux", Arch: "x64"},
		Toolchain:   &config.Toolchain{Name: "dotnet", Version: "8.0.100"},
		ProjectFile: "src/tool.csproj",
		OutputDir:   "/out",
		VersionInputs: VersionInputs{
			Version:      "1.2.3",
			CommitPrefix: "abcdef012345",
			RunID:        "run-1",
		},
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	builder := &scriptedBuilder{}
	set, attempts, err := New(builder).Run(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, set.Validate())
}

func TestRun_RetriesIdenticalRequestOnce(t *testing.T) {
	builder := &scriptedBuilder{failures: 1}
	set, attempts, err := New(builder).Run(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, set.Validate())

	require.Len(t, builder.requests, 2)
	assert.Equal(t, builder.requests[0], builder.requests[1], "the retry must replay the identical request")
}

func TestRun_ExhaustsAfterTwoAttempts(t *testing.T) {
	builder := &scriptedBuilder{failures: 5}
	set, attempts, err := New(builder).Run(context.Background(), testRequest())

	assert.Nil(t, set)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, builder.calls, "attempt budget is fixed at two")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Contains(t, exhausted.Error(), "transient resource exhaustion")
}

type incompleteBuilder struct{}

func (incompleteBuilder) Build(context.Context, Request) (artifact.Set, error) {
	set := completeSet()
	delete(set, artifact.IndexTool)
	return set, nil
}

func TestRun_IncompleteSetIsNotRetried(t *testing.T) {
	set, attempts, err := New(incompleteBuilder{}).Run(context.Background(), testRequest())

	assert.Nil(t, set)
	assert.Equal(t, 1, attempts, "a malformed success fails the build without retry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete binary set")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := &scriptedBuilder{}
	_, _, err := New(builder).Run(ctx, testRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, builder.calls)
}
