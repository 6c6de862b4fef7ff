// Package buildgraph derives the co-appearance dataset from parsed IMDB
// records.
package buildgraph

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sixdegrees/bacond/internal/dataset"
	"github.com/sixdegrees/bacond/internal/imdb"
)

// Sources names the three raw dump files a build consumes.
type Sources struct {
	TitleBasics     string
	TitlePrincipals string
	NameBasics      string
}

// Options controls the build.
type Options struct {
	Ingest imdb.Options

	// Shards is the number of parallel adjacency workers. Zero means
	// GOMAXPROCS.
	Shards int

	Logger *slog.Logger
}

func (o Options) shards() int {
	if o.Shards > 0 {
		return o.Shards
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Build runs the full batch pipeline: scan the three dumps, resolve IDs to
// names, assemble per-movie casts, and count pairwise co-appearances. The
// returned dataset satisfies the symmetry and no-self-loop invariants by
// construction.
func Build(ctx context.Context, src Sources, opts Options) (*dataset.Dataset, error) {
	log := opts.logger()

	// Movie IDs to names, filtered to qualifying title types.
	movieNames := make(map[string]string)
	stats, err := imdb.ReadTitles(src.TitleBasics, opts.Ingest, func(r imdb.TitleRecord) error {
		movieNames[r.ID] = r.Name
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("scan title basics: %w", err)
	}
	log.Info("scanned title basics",
		"movies", len(movieNames), "rows", stats.Rows, "skipped", stats.Skipped)

	// Movie ID to cast member IDs, filtered to qualifying job categories.
	movieCastIDs := make(map[string][]string)
	stats, err = imdb.ReadPrincipals(src.TitlePrincipals, opts.Ingest,
		func(titleID string) bool { _, ok := movieNames[titleID]; return ok },
		func(r imdb.PrincipalRecord) error {
			movieCastIDs[r.TitleID] = append(movieCastIDs[r.TitleID], r.PersonID)
			return ctx.Err()
		})
	if err != nil {
		return nil, fmt.Errorf("scan title principals: %w", err)
	}
	log.Info("scanned title principals",
		"movies_with_cast", len(movieCastIDs), "rows", stats.Rows, "skipped", stats.Skipped)

	// Names only for the actors that actually appear in a qualifying cast.
	relevant := make(map[string]struct{})
	for _, cast := range movieCastIDs {
		for _, id := range cast {
			relevant[id] = struct{}{}
		}
	}
	actorNames := make(map[string]string, len(relevant))
	stats, err = imdb.ReadNames(src.NameBasics, opts.Ingest,
		func(id string) bool { _, ok := relevant[id]; return ok },
		func(r imdb.NameRecord) error {
			actorNames[r.ID] = r.Name
			return ctx.Err()
		})
	if err != nil {
		return nil, fmt.Errorf("scan name basics: %w", err)
	}
	log.Info("scanned name basics",
		"actors", len(actorNames), "rows", stats.Rows, "skipped", stats.Skipped)

	casts := assembleCasts(movieNames, movieCastIDs, actorNames)
	log.Info("assembled casts", "movies", len(casts))

	adjacency, err := BuildAdjacency(ctx, casts, opts.shards())
	if err != nil {
		return nil, err
	}
	log.Info("built co-appearance graph", "actors", len(adjacency))

	return &dataset.Dataset{
		Version:     dataset.SchemaVersion,
		MoviesCasts: casts,
		ActorsGraph: adjacency,
	}, nil
}

// assembleCasts resolves IDs to names and produces the movie -> cast mapping.
// Two title IDs sharing a primary title merge into one cast; duplicate and
// unresolvable members are dropped; movies left with an empty cast are
// dropped entirely.
func assembleCasts(movieNames map[string]string, movieCastIDs map[string][]string, actorNames map[string]string) map[string][]string {
	castSets := make(map[string]map[string]struct{})
	for movieID, castIDs := range movieCastIDs {
		movieName, ok := movieNames[movieID]
		if !ok {
			continue
		}
		for _, actorID := range castIDs {
			actorName, ok := actorNames[actorID]
			if !ok {
				continue
			}
			set, ok := castSets[movieName]
			if !ok {
				set = make(map[string]struct{})
				castSets[movieName] = set
			}
			set[actorName] = struct{}{}
		}
	}

	casts := make(map[string][]string, len(castSets))
	for movie, set := range castSets {
		cast := make([]string, 0, len(set))
		for actor := range set {
			cast = append(cast, actor)
		}
		sort.Strings(cast)
		casts[movie] = cast
	}
	return casts
}

// Adjacency is a partial or complete co-appearance mapping: actor ->
// co-actor -> shared-movie count.
type Adjacency = map[string]map[string]int

// BuildAdjacency counts pairwise co-appearances across the given casts,
// sharding movies over the requested number of workers and merging the
// partial results. Merging is a commutative, associative sum, so the result
// is identical to a sequential pass regardless of shard count or completion
// order.
func BuildAdjacency(ctx context.Context, casts map[string][]string, shards int) (Adjacency, error) {
	if shards < 1 {
		shards = 1
	}

	movies := make([]string, 0, len(casts))
	for movie := range casts {
		movies = append(movies, movie)
	}

	partials := make([]Adjacency, shards)
	g, ctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		g.Go(func() error {
			partial := make(Adjacency)
			for i := s; i < len(movies); i += shards {
				if err := ctx.Err(); err != nil {
					return err
				}
				countPairs(partial, casts[movies[i]])
			}
			partials[s] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build adjacency: %w", err)
	}

	merged := make(Adjacency)
	for _, partial := range partials {
		MergeAdjacency(merged, partial)
	}
	return merged, nil
}

// countPairs increments the shared-movie count for every unordered pair of
// distinct cast members, in both directions. A singleton cast still records
// its actor so that isolated actors are queryable.
func countPairs(adj Adjacency, cast []string) {
	if len(cast) == 0 {
		return
	}
	uniq := dedup(cast)
	for _, actor := range uniq {
		if adj[actor] == nil {
			adj[actor] = make(map[string]int)
		}
	}
	for i := 0; i < len(uniq); i++ {
		for j := i + 1; j < len(uniq); j++ {
			adj[uniq[i]][uniq[j]]++
			adj[uniq[j]][uniq[i]]++
		}
	}
}

func dedup(cast []string) []string {
	seen := make(map[string]struct{}, len(cast))
	uniq := cast[:0:0]
	for _, actor := range cast {
		if _, ok := seen[actor]; ok {
			continue
		}
		seen[actor] = struct{}{}
		uniq = append(uniq, actor)
	}
	return uniq
}

// MergeAdjacency folds src into dst by summing weights. The operation is
// commutative and associative over partial adjacencies.
func MergeAdjacency(dst, src Adjacency) {
	for actor, coActors := range src {
		d := dst[actor]
		if d == nil {
			d = make(map[string]int, len(coActors))
			dst[actor] = d
		}
		for coActor, n := range coActors {
			d[coActor] += n
		}
	}
}
