package engine

import (
	"sort"

	"github.com/sixdegrees/bacond/internal/dataset"
)

// edge is one adjacency entry. Weight is the shared-movie count; the
// hop-count BFS does not consult it, but it is kept so a weighted query can
// be added without rebuilding datasets.
type edge struct {
	to     int32
	weight int32
}

// Graph is the in-memory query form of a dataset: actor names interned to
// dense indices, adjacency stored as flat edge slices. It is immutable after
// construction and safe for concurrent readers.
type Graph struct {
	index map[string]int32
	names []string
	adj   [][]edge
}

// NewGraph interns a validated dataset into its index-based query form.
func NewGraph(d *dataset.Dataset) *Graph {
	actors := make([]string, 0, len(d.ActorsGraph))
	for actor := range d.ActorsGraph {
		actors = append(actors, actor)
	}
	sort.Strings(actors)

	g := &Graph{
		index: make(map[string]int32, len(actors)),
		names: actors,
		adj:   make([][]edge, len(actors)),
	}
	for i, actor := range actors {
		g.index[actor] = int32(i)
	}
	for actor, coActors := range d.ActorsGraph {
		from := g.index[actor]
		edges := make([]edge, 0, len(coActors))
		for coActor, weight := range coActors {
			edges = append(edges, edge{to: g.index[coActor], weight: int32(weight)})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].to < edges[j].to })
		g.adj[from] = edges
	}
	return g
}

// Len returns the number of actors in the graph.
func (g *Graph) Len() int { return len(g.names) }

// Contains reports whether the actor is present in the graph.
func (g *Graph) Contains(actor string) bool {
	_, ok := g.index[actor]
	return ok
}
