// Package dag is the directed graph of typed pipeline stages. Each node
// wraps a stage function; edges order stages; a node with many predecessors
// is a join that runs only after every predecessor succeeds.
package dag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// StageFunc is the work a node performs. Inputs and outputs are threaded
// through the closures that build the graph, not through shared state.
type StageFunc func(ctx context.Context) error

// Node is a single stage in the execution graph.
type Node struct {
	ID  string
	Run StageFunc

	Deps       map[string]*Node
	Dependents map[string]*Node

	// Error stores the failure that terminated this node, if any.
	Error error

	depCount atomic.Int32
	state    atomic.Int32
	skipOnce sync.Once
}

// State is a node's execution state.
type State int32

const (
	Pending State = iota
	Running
	Done
	Failed
)

// GetState atomically reads the node's state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
}

// Graph is a collection of stage nodes and their ordering edges.
type Graph struct {
	Nodes map[string]*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode registers a stage under a unique ID.
func (g *Graph) AddNode(id string, run StageFunc) (*Node, error) {
	if _, exists := g.Nodes[id]; exists {
		return nil, fmt.Errorf("duplicate node %q", id)
	}
	n := &Node{
		ID:         id,
		Run:        run,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
	g.Nodes[id] = n
	return n, nil
}

// AddEdge orders toID after fromID. Self-references and unknown nodes are
// rejected.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, toID)
	}
	from, ok := g.Nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.Nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.Deps[fromID] = from
	from.Dependents[toID] = to
	return nil
}

// Finalize initializes dependency counters and validates acyclicity. Must
// be called once, after all nodes and edges are added.
func (g *Graph) Finalize() error {
	for _, n := range g.Nodes {
		n.depCount.Store(int32(len(n.Deps)))
	}
	return g.detectCycles()
}

// detectCycles checks for circular dependencies using DFS.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		visiting[n.ID] = true
		for _, dep := range n.Deps {
			if visiting[dep.ID] {
				return fmt.Errorf("cycle detected involving '%s'", dep.ID)
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, n.ID)
		visited[n.ID] = true
		return nil
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
