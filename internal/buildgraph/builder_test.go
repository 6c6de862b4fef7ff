package buildgraph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sixdegrees/bacond/internal/dataset"
	"github.com/sixdegrees/bacond/internal/imdb"
)

// canonicalSources writes the example filmography as raw dumps:
// Fast & Furious (Vin Diesel, Gal Gadot), Justice League (Gal Gadot,
// Ben Affleck), Footloose (Kevin Bacon, Gal Gadot, Ben Affleck).
func canonicalSources(t *testing.T) Sources {
	t.Helper()
	dir := t.TempDir()

	write := func(name string, lines ...string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	return Sources{
		TitleBasics: write("title.basics.tsv",
			"tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres",
			"tt1\tmovie\tFast & Furious\tFast & Furious\t0\t2009\t\\N\t107\tAction",
			"tt2\tmovie\tJustice League\tJustice League\t0\t2017\t\\N\t120\tAction",
			"tt3\tmovie\tFootloose\tFootloose\t0\t1984\t\\N\t107\tDrama",
			"tt4\ttvSeries\tNot A Movie\tNot A Movie\t0\t2001\t2002\t\\N\tDrama",
			"tt5\tmovie\tUncast Film\tUncast Film\t0\t1999\t\\N\t90\tDrama",
		),
		TitlePrincipals: write("title.principals.tsv",
			"tconst\tordering\tnconst\tcategory\tjob\tcharacters",
			"tt1\t1\tnm1\tactor\t\\N\t\\N",
			"tt1\t2\tnm2\tactress\t\\N\t\\N",
			"tt2\t1\tnm2\tactress\t\\N\t\\N",
			"tt2\t2\tnm3\tactor\t\\N\t\\N",
			"tt3\t1\tnm4\tactor\t\\N\t\\N",
			"tt3\t2\tnm2\tactress\t\\N\t\\N",
			"tt3\t3\tnm3\tactor\t\\N\t\\N",
			"tt3\t4\tnm5\tdirector\t\\N\t\\N",
			"tt4\t1\tnm1\tactor\t\\N\t\\N",
		),
		NameBasics: write("name.basics.tsv",
			"nconst\tprimaryName\tbirthYear\tdeathYear\tprimaryProfession\tknownForTitles",
			"nm1\tVin Diesel\t1967\t\\N\tactor\ttt1",
			"nm2\tGal Gadot\t1985\t\\N\tactress\ttt2",
			"nm3\tBen Affleck\t1972\t\\N\tactor\ttt2",
			"nm4\tKevin Bacon\t1958\t\\N\tactor\ttt3",
			"nm5\tHerbert Ross\t1927\t2001\tdirector\ttt3",
		),
	}
}

func TestBuild_CanonicalScenario(t *testing.T) {
	d, err := Build(context.Background(), canonicalSources(t), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantCasts := map[string][]string{
		"Fast & Furious": {"Gal Gadot", "Vin Diesel"},
		"Justice League": {"Ben Affleck", "Gal Gadot"},
		"Footloose":      {"Ben Affleck", "Gal Gadot", "Kevin Bacon"},
	}
	if !reflect.DeepEqual(d.MoviesCasts, wantCasts) {
		t.Errorf("movies_casts:\ngot  %v\nwant %v", d.MoviesCasts, wantCasts)
	}

	wantGraph := map[string]map[string]int{
		"Vin Diesel":  {"Gal Gadot": 1},
		"Gal Gadot":   {"Vin Diesel": 1, "Ben Affleck": 2, "Kevin Bacon": 1},
		"Ben Affleck": {"Gal Gadot": 2, "Kevin Bacon": 1},
		"Kevin Bacon": {"Gal Gadot": 1, "Ben Affleck": 1},
	}
	if !reflect.DeepEqual(d.ActorsGraph, wantGraph) {
		t.Errorf("actors_graph:\ngot  %v\nwant %v", d.ActorsGraph, wantGraph)
	}

	if err := d.Validate(); err != nil {
		t.Errorf("built dataset fails validation: %v", err)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	src := canonicalSources(t)

	var bufs [2]bytes.Buffer
	for i := range bufs {
		d, err := Build(context.Background(), src, Options{Shards: 3})
		if err != nil {
			t.Fatal(err)
		}
		if err := dataset.Encode(&bufs[i], d); err != nil {
			t.Fatal(err)
		}
	}
	if !bytes.Equal(bufs[0].Bytes(), bufs[1].Bytes()) {
		t.Error("two builds from identical sources produced different bytes")
	}
}

func TestBuild_ThresholdAborts(t *testing.T) {
	src := canonicalSources(t)
	_, err := Build(context.Background(), src, Options{
		Ingest: imdb.Options{MaxSkipRatio: 0.1, MinRowsForRatio: 1},
	})
	// The canonical fixtures are clean, so this build must succeed even with
	// an aggressive threshold.
	if err != nil {
		t.Fatalf("clean sources tripped the threshold: %v", err)
	}

	// A garbage principals file must abort the build.
	dir := t.TempDir()
	bad := filepath.Join(dir, "title.principals.tsv")
	lines := []string{"tconst\tordering\tnconst\tcategory\tjob\tcharacters"}
	for i := 0; i < 20; i++ {
		lines = append(lines, "tt1\t1\t\\N\tactor\t\\N\t\\N")
	}
	if err := os.WriteFile(bad, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src.TitlePrincipals = bad

	_, err = Build(context.Background(), src, Options{
		Ingest: imdb.Options{MaxSkipRatio: 0.1, MinRowsForRatio: 1},
	})
	if err == nil {
		t.Fatal("expected threshold abort, got nil")
	}
}

func TestCountPairs_DeduplicatesCast(t *testing.T) {
	adj := make(Adjacency)
	countPairs(adj, []string{"A", "B", "A", "B", "A"})
	if adj["A"]["B"] != 1 || adj["B"]["A"] != 1 {
		t.Errorf("duplicate cast members should count once, got %v", adj)
	}
}

func TestCountPairs_NoSelfLoops(t *testing.T) {
	adj := make(Adjacency)
	countPairs(adj, []string{"A", "B", "C"})
	for actor, coActors := range adj {
		if _, ok := coActors[actor]; ok {
			t.Errorf("self-loop on %s: %v", actor, coActors)
		}
	}
}

func TestCountPairs_SingletonCast(t *testing.T) {
	adj := make(Adjacency)
	countPairs(adj, []string{"Loner"})
	coActors, ok := adj["Loner"]
	if !ok {
		t.Fatal("singleton cast actor missing from adjacency")
	}
	if len(coActors) != 0 {
		t.Errorf("singleton cast actor has co-actors: %v", coActors)
	}
}

func TestBuildAdjacency_Symmetry(t *testing.T) {
	casts := map[string][]string{
		"M1": {"A", "B", "C"},
		"M2": {"B", "C", "D"},
		"M3": {"A", "D"},
		"M4": {"E"},
	}
	adj, err := BuildAdjacency(context.Background(), casts, 2)
	if err != nil {
		t.Fatal(err)
	}
	for actor, coActors := range adj {
		for coActor, weight := range coActors {
			if back := adj[coActor][actor]; back != weight {
				t.Errorf("weight(%s->%s)=%d but weight(%s->%s)=%d", actor, coActor, weight, coActor, actor, back)
			}
		}
	}
}

func TestBuildAdjacency_MergeCommutativity(t *testing.T) {
	casts := map[string][]string{
		"M1": {"A", "B", "C"},
		"M2": {"B", "C", "D"},
		"M3": {"A", "D"},
		"M4": {"C", "D", "E", "F"},
		"M5": {"A", "F"},
		"M6": {"G"},
	}

	sequential, err := BuildAdjacency(context.Background(), casts, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, shards := range []int{2, 3, 4, 7, 16} {
		sharded, err := BuildAdjacency(context.Background(), casts, shards)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(sequential, sharded) {
			t.Errorf("shards=%d:\ngot  %v\nwant %v", shards, sharded, sequential)
		}
	}
}

func TestMergeAdjacency_SumsWeights(t *testing.T) {
	dst := Adjacency{"A": {"B": 1}}
	src := Adjacency{"A": {"B": 2, "C": 1}, "C": {"A": 1}}
	MergeAdjacency(dst, src)

	want := Adjacency{"A": {"B": 3, "C": 1}, "C": {"A": 1}}
	if !reflect.DeepEqual(dst, want) {
		t.Errorf("merge:\ngot  %v\nwant %v", dst, want)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, canonicalSources(t), Options{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
