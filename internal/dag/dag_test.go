package dag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder tracks which stages ran, in a goroutine-safe way.
type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) stage(id string, err error) StageFunc {
	return func(context.Context) error {
		r.mu.Lock()
		r.ran = append(r.ran, id)
		r.mu.Unlock()
		return err
	}
}

func (r *recorder) didRun(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.ran {
		if got == id {
			return true
		}
	}
	return false
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := New()
	_, err := g.AddNode("a", nil)
	require.NoError(t, err)
	_, err = g.AddNode("a", nil)
	assert.Error(t, err)
}

func TestGraph_AddEdge_Validation(t *testing.T) {
	g := New()
	_, err := g.AddNode("a", nil)
	require.NoError(t, err)

	assert.Error(t, g.AddEdge("a", "a"), "self edge")
	assert.Error(t, g.AddEdge("missing", "a"), "unknown source")
	assert.Error(t, g.AddEdge("a", "missing"), "unknown destination")
}

func TestGraph_Finalize_DetectsCycle(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		_, err := g.AddNode(id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "a"))

	err := g.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRun_OrdersDependencies(t *testing.T) {
	rec := &recorder{}
	g := New()
	_, err := g.AddNode("first", rec.stage("first", nil))
	require.NoError(t, err)
	_, err = g.AddNode("second", rec.stage("second", nil))
	require.NoError(t, err)
	require.NoError(t, g.AddEdge("first", "second"))
	require.NoError(t, g.Finalize())

	require.NoError(t, NewExecutor(g, 4).Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, rec.ran)
}

func TestRun_FailureSkipsDependentsTransitively(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("stage failed")

	g := New()
	_, err := g.AddNode("build", rec.stage("build", boom))
	require.NoError(t, err)
	_, err = g.AddNode("bundle", rec.stage("bundle", nil))
	require.NoError(t, err)
	_, err = g.AddNode("upload", rec.stage("upload", nil))
	require.NoError(t, err)
	require.NoError(t, g.AddEdge("build", "bundle"))
	require.NoError(t, g.AddEdge("bundle", "upload"))
	require.NoError(t, g.Finalize())

	err = NewExecutor(g, 2).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.False(t, rec.didRun("bundle"))
	assert.False(t, rec.didRun("upload"))
	assert.Equal(t, Failed, g.Nodes["bundle"].GetState())
	assert.Equal(t, Failed, g.Nodes["upload"].GetState())
}

func TestRun_SiblingChainCompletesDespiteFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("linux build failed")

	g := New()
	_, err := g.AddNode("linux.build", rec.stage("linux.build", boom))
	require.NoError(t, err)
	_, err = g.AddNode("linux.upload", rec.stage("linux.upload", nil))
	require.NoError(t, err)
	_, err = g.AddNode("osx.build", rec.stage("osx.build", nil))
	require.NoError(t, err)
	_, err = g.AddNode("osx.upload", rec.stage("osx.upload", nil))
	require.NoError(t, err)
	_, err = g.AddNode("publish", rec.stage("publish", nil))
	require.NoError(t, err)

	require.NoError(t, g.AddEdge("linux.build", "linux.upload"))
	require.NoError(t, g.AddEdge("osx.build", "osx.upload"))
	require.NoError(t, g.AddEdge("linux.upload", "publish"))
	require.NoError(t, g.AddEdge("osx.upload", "publish"))
	require.NoError(t, g.Finalize())

	err = NewExecutor(g, 4).Run(context.Background())
	require.Error(t, err)

	// The failing chain must not cancel its sibling.
	assert.True(t, rec.didRun("osx.build"))
	assert.True(t, rec.didRun("osx.upload"))
	assert.Equal(t, Done, g.Nodes["osx.upload"].GetState())

	// The join runs only when every predecessor succeeded.
	assert.False(t, rec.didRun("publish"))
	assert.Equal(t, Failed, g.Nodes["publish"].GetState())
}

func TestRun_JoinRunsAfterAllPredecessorsSucceed(t *testing.T) {
	rec := &recorder{}

	g := New()
	for _, id := range []string{"a", "b", "c"} {
		_, err := g.AddNode(id, rec.stage(id, nil))
		require.NoError(t, err)
	}
	_, err := g.AddNode("join", rec.stage("join", nil))
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddEdge(id, "join"))
	}
	require.NoError(t, g.Finalize())

	require.NoError(t, NewExecutor(g, 3).Run(context.Background()))
	require.Len(t, rec.ran, 4)
	assert.Equal(t, "join", rec.ran[3])
}

func TestRun_RootCauseNamesRealFailureOnly(t *testing.T) {
	boom := errors.New("the actual failure")
	rec := &recorder{}

	g := New()
	_, err := g.AddNode("fails", rec.stage("fails", boom))
	require.NoError(t, err)
	_, err = g.AddNode("skipped", rec.stage("skipped", nil))
	require.NoError(t, err)
	require.NoError(t, g.AddEdge("fails", "skipped"))
	require.NoError(t, g.Finalize())

	err = NewExecutor(g, 1).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fails")
	assert.NotContains(t, err.Error(), "skipped,", "skipped nodes are symptoms, not causes")
}
