package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func exampleDataset() *Dataset {
	return &Dataset{
		MoviesCasts: map[string][]string{
			"Fast & Furious": {"Vin Diesel", "Gal Gadot"},
			"Justice League": {"Gal Gadot", "Ben Affleck"},
			"Footloose":      {"Kevin Bacon", "Gal Gadot", "Ben Affleck"},
		},
		ActorsGraph: map[string]map[string]int{
			"Vin Diesel":  {"Gal Gadot": 1},
			"Gal Gadot":   {"Vin Diesel": 1, "Ben Affleck": 2, "Kevin Bacon": 1},
			"Ben Affleck": {"Gal Gadot": 2, "Kevin Bacon": 1},
			"Kevin Bacon": {"Gal Gadot": 1, "Ben Affleck": 1},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := exampleDataset().Validate(); err != nil {
		t.Fatalf("valid dataset rejected: %v", err)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dataset)
		field  string
	}{
		{
			name:   "missing movies_casts",
			mutate: func(d *Dataset) { d.MoviesCasts = nil },
			field:  "movies_casts",
		},
		{
			name:   "missing actors_graph",
			mutate: func(d *Dataset) { d.ActorsGraph = nil },
			field:  "actors_graph",
		},
		{
			name:   "unsupported version",
			mutate: func(d *Dataset) { d.Version = 99 },
			field:  "schema_version",
		},
		{
			name:   "empty cast",
			mutate: func(d *Dataset) { d.MoviesCasts["Footloose"] = nil },
			field:  "movies_casts.Footloose",
		},
		{
			name:   "negative weight",
			mutate: func(d *Dataset) { d.ActorsGraph["Vin Diesel"]["Gal Gadot"] = -1 },
			field:  "actors_graph",
		},
		{
			name: "asymmetric adjacency",
			mutate: func(d *Dataset) {
				d.ActorsGraph["Gal Gadot"]["Kevin Bacon"] = 7
			},
			field: "actors_graph",
		},
		{
			name: "self loop",
			mutate: func(d *Dataset) {
				d.ActorsGraph["Vin Diesel"]["Vin Diesel"] = 1
			},
			field: "actors_graph.Vin Diesel",
		},
		{
			name: "actor not in any cast",
			mutate: func(d *Dataset) {
				d.ActorsGraph["Nobody"] = map[string]int{}
			},
			field: "actors_graph.Nobody",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := exampleDataset()
			tt.mutate(d)
			err := d.Validate()
			if err == nil {
				t.Fatal("expected schema violation, got nil")
			}
			schemaErr, ok := err.(*SchemaError)
			if !ok {
				t.Fatalf("expected *SchemaError, got %T: %v", err, err)
			}
			if !strings.HasPrefix(schemaErr.Field, tt.field) {
				t.Errorf("error field = %q, want prefix %q", schemaErr.Field, tt.field)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	d := exampleDataset()

	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	d.Normalize()
	if !reflect.DeepEqual(got.MoviesCasts, d.MoviesCasts) {
		t.Errorf("movies_casts round-trip mismatch:\ngot  %v\nwant %v", got.MoviesCasts, d.MoviesCasts)
	}
	if !reflect.DeepEqual(got.ActorsGraph, d.ActorsGraph) {
		t.Errorf("actors_graph round-trip mismatch:\ngot  %v\nwant %v", got.ActorsGraph, d.ActorsGraph)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := Encode(&a, exampleDataset()); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&b, exampleDataset()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("encoding the same dataset twice produced different bytes")
	}
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"fractional weight", `{"movies_casts":{"M":["A","B"]},"actors_graph":{"A":{"B":1.5},"B":{"A":1.5}}}`},
		{"string weight", `{"movies_casts":{"M":["A","B"]},"actors_graph":{"A":{"B":"one"},"B":{"A":"one"}}}`},
		{"missing graph", `{"movies_casts":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if _, ok := err.(*SchemaError); !ok {
				t.Errorf("expected *SchemaError, got %T: %v", err, err)
			}
		})
	}
}

func TestSaveLoad_AtomicPublish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")

	if err := Save(path, exampleDataset()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Overwrite with a different dataset; readers must only ever see one of
	// the two complete files.
	smaller := &Dataset{
		MoviesCasts: map[string][]string{"Footloose": {"Kevin Bacon"}},
		ActorsGraph: map[string]map[string]int{"Kevin Bacon": {}},
	}
	if err := Save(path, smaller); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Movies() != 1 || got.Actors() != 1 {
		t.Errorf("loaded dataset = %d movies / %d actors, want 1/1", got.Movies(), got.Actors())
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the published dataset in %s, found %d entries", dir, len(entries))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
