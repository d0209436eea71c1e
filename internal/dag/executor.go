package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/shipgridgo/internal/ctxlog"
)

// Executor runs a finalized graph on a pool of workers.
//
// A node failure skips that node's dependents but does not cancel sibling
// chains: the join semantics are all-succeeded, not
// first-failure-cancels-siblings. Independent platform chains run to their
// own terminal states even when one of them fails.
type Executor struct {
	graph      *Graph
	numWorkers int
	wg         sync.WaitGroup
}

// NewExecutor creates an executor for the given graph.
func NewExecutor(graph *Graph, numWorkers int) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{graph: graph, numWorkers: numWorkers}
}

// Run executes the entire graph concurrently. It returns an error naming
// the root-cause failures once every node has reached a terminal state.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.graph.Nodes))
	rootCount := 0
	for _, n := range e.graph.Nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "nodes", len(e.graph.Nodes), "roots", rootCount, "workers", e.numWorkers)

	e.wg.Add(len(e.graph.Nodes))
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes reached a terminal state.")

	var failed []string
	var rootCause error
	for _, n := range e.graph.Nodes {
		if n.GetState() != Failed {
			continue
		}
		// A skip is a symptom of an upstream failure, not a cause.
		if n.Error != nil && !strings.HasPrefix(n.Error.Error(), "skipped") && !errors.Is(n.Error, context.Canceled) {
			failed = append(failed, n.ID)
			if rootCause == nil {
				rootCause = n.Error
			}
		}
	}
	if rootCause != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	return nil
}

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)

	for n := range readyChan {
		if ctx.Err() != nil {
			e.skip(ctx, n, ctx.Err())
			continue
		}

		logger.Debug("Worker picked up node.", "nodeID", n.ID)
		n.setState(Running)
		err := n.Run(ctx)
		if err != nil {
			logger.Error("Node execution failed.", "nodeID", n.ID, "error", err)
			n.setState(Failed)
			n.Error = err
			e.skipDependents(ctx, n)
			e.wg.Done()
			continue
		}

		n.setState(Done)
		for _, dependent := range n.Dependents {
			if dependent.depCount.Add(-1) == 0 {
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// skip marks a node failed exactly once without running it.
func (e *Executor) skip(ctx context.Context, n *Node, cause error) {
	n.skipOnce.Do(func() {
		ctxlog.FromContext(ctx).Warn("Skipping node.", "nodeID", n.ID, "cause", cause)
		n.setState(Failed)
		n.Error = cause
		e.wg.Done()
		e.skipDependents(ctx, n)
	})
}

// skipDependents transitively marks all downstream nodes as failed.
func (e *Executor) skipDependents(ctx context.Context, n *Node) {
	for _, dependent := range n.Dependents {
		e.skip(ctx, dependent, fmt.Errorf("skipped due to upstream failure of '%s'", n.ID))
	}
}
