// Package dataset defines the persisted movies/actors dataset and its codec.
package dataset

import (
	"fmt"
	"sort"
)

// SchemaVersion is the current dataset file schema version. Files written by
// the legacy generator carry no version field and are treated as version 1.
const SchemaVersion = 1

// Dataset is the single unit of persistence produced by a build and the
// single unit of load for querying. It is immutable after load.
type Dataset struct {
	Version int `json:"schema_version,omitempty"`

	// Movie name -> ordered list of actor names appearing in it.
	MoviesCasts map[string][]string `json:"movies_casts"`

	// Actor name -> (co-actor name -> number of movies shared).
	ActorsGraph map[string]map[string]int `json:"actors_graph"`
}

// SchemaError reports a dataset file that violates the schema contract.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset schema violation at %s: %s", e.Field, e.Reason)
}

// Validate checks the structural invariants of a decoded dataset before it is
// handed to the query engine: both top-level mappings present, non-negative
// weights, symmetric adjacency, no self-loops, and every adjacency actor
// derivable from at least one cast.
func (d *Dataset) Validate() error {
	if d.MoviesCasts == nil {
		return &SchemaError{Field: "movies_casts", Reason: "required field missing"}
	}
	if d.ActorsGraph == nil {
		return &SchemaError{Field: "actors_graph", Reason: "required field missing"}
	}
	if d.Version != 0 && d.Version != SchemaVersion {
		return &SchemaError{
			Field:  "schema_version",
			Reason: fmt.Sprintf("unsupported version %d", d.Version),
		}
	}

	castActors := make(map[string]struct{})
	for movie, cast := range d.MoviesCasts {
		if movie == "" {
			return &SchemaError{Field: "movies_casts", Reason: "empty movie name"}
		}
		if len(cast) == 0 {
			return &SchemaError{
				Field:  "movies_casts." + movie,
				Reason: "movie has no cast",
			}
		}
		for _, actor := range cast {
			if actor == "" {
				return &SchemaError{
					Field:  "movies_casts." + movie,
					Reason: "empty actor name in cast",
				}
			}
			castActors[actor] = struct{}{}
		}
	}

	for actor, coActors := range d.ActorsGraph {
		if actor == "" {
			return &SchemaError{Field: "actors_graph", Reason: "empty actor name"}
		}
		if _, ok := castActors[actor]; !ok {
			return &SchemaError{
				Field:  "actors_graph." + actor,
				Reason: "actor does not appear in any movie cast",
			}
		}
		for coActor, weight := range coActors {
			if coActor == actor {
				return &SchemaError{
					Field:  "actors_graph." + actor,
					Reason: "self-loop",
				}
			}
			if weight <= 0 {
				return &SchemaError{
					Field:  fmt.Sprintf("actors_graph.%s.%s", actor, coActor),
					Reason: fmt.Sprintf("non-positive weight %d", weight),
				}
			}
			back, ok := d.ActorsGraph[coActor]
			if !ok || back[actor] != weight {
				return &SchemaError{
					Field:  fmt.Sprintf("actors_graph.%s.%s", actor, coActor),
					Reason: "asymmetric adjacency",
				}
			}
		}
	}
	return nil
}

// Normalize sorts every cast list in place so that encoding the same logical
// dataset always yields identical bytes.
func (d *Dataset) Normalize() {
	for _, cast := range d.MoviesCasts {
		sort.Strings(cast)
	}
}

// Actors returns the number of actors in the co-appearance graph.
func (d *Dataset) Actors() int { return len(d.ActorsGraph) }

// Movies returns the number of movies with a qualifying cast.
func (d *Dataset) Movies() int { return len(d.MoviesCasts) }
