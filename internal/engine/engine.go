// Package engine answers collaboration-distance queries over an in-memory
// co-appearance graph.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sixdegrees/bacond/internal/dataset"
	"github.com/sixdegrees/bacond/internal/observability"
)

// DefaultReference is the reference actor distances are measured against.
const DefaultReference = "Kevin Bacon"

var (
	// ErrUnknownActor reports a queried actor absent from the graph.
	ErrUnknownActor = errors.New("actor not found in dataset")

	// ErrNoPath reports an actor with no chain of shared movies to the
	// reference.
	ErrNoPath = errors.New("no path to reference actor")

	// ErrNoDataset reports a query before any dataset was loaded.
	ErrNoDataset = errors.New("no dataset loaded")
)

// Engine computes shortest hop distances from a fixed reference actor. The
// graph sits behind an atomic pointer: concurrent queries share it lock-free,
// and Swap replaces it atomically so in-flight queries finish on the graph
// they started with.
type Engine struct {
	reference string
	graph     atomic.Pointer[Graph]
}

// New creates an engine measuring distances to reference. An empty reference
// selects DefaultReference.
func New(reference string) *Engine {
	if reference == "" {
		reference = DefaultReference
	}
	return &Engine{reference: reference}
}

// Reference returns the configured reference actor.
func (e *Engine) Reference() string { return e.reference }

// Swap atomically replaces the active graph. Passing the graph built from a
// freshly decoded dataset is the only way queries ever observe new data.
func (e *Engine) Swap(g *Graph) { e.graph.Store(g) }

// Load is a convenience for Swap(NewGraph(d)).
func (e *Engine) Load(d *dataset.Dataset) { e.Swap(NewGraph(d)) }

// Ready reports whether a graph has been loaded.
func (e *Engine) Ready() bool { return e.graph.Load() != nil }

// Distance returns the minimum number of shared-movie hops between actor and
// the reference. It returns ErrUnknownActor when the actor is not in the
// graph and ErrNoPath when no chain of co-appearances connects them. The
// context is checked between BFS frontier expansions.
func (e *Engine) Distance(ctx context.Context, actor string) (int, error) {
	ctx, span := observability.StartQuerySpan(ctx, actor)
	defer span.End()

	g := e.graph.Load()
	if g == nil {
		return 0, ErrNoDataset
	}

	start, ok := g.index[actor]
	if !ok {
		return 0, fmt.Errorf("%q: %w", actor, ErrUnknownActor)
	}
	if actor == e.reference {
		return 0, nil
	}
	target, ok := g.index[e.reference]
	if !ok {
		return 0, fmt.Errorf("%q: %w", actor, ErrNoPath)
	}

	dist, err := bfs(ctx, g, start, target)
	if err != nil {
		return 0, err
	}
	if dist < 0 {
		return 0, fmt.Errorf("%q: %w", actor, ErrNoPath)
	}
	observability.RecordDistance(span, dist)
	return dist, nil
}

// bfs expands the frontier one hop at a time from start until target is
// reached, returning -1 when the frontier exhausts first. Visited and
// frontier state are query-local; the graph is only read.
func bfs(ctx context.Context, g *Graph, start, target int32) (int, error) {
	visited := make([]bool, g.Len())
	visited[start] = true
	frontier := []int32{start}

	for depth := 1; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var next []int32
		for _, node := range frontier {
			for _, e := range g.adj[node] {
				if visited[e.to] {
					continue
				}
				if e.to == target {
					return depth, nil
				}
				visited[e.to] = true
				next = append(next, e.to)
			}
		}
		frontier = next
	}
	return -1, nil
}
