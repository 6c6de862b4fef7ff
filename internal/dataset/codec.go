package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode writes the dataset as indented JSON. Casts are sorted first so that
// two builds from identical inputs produce byte-identical output.
func Encode(w io.Writer, d *Dataset) error {
	d.Normalize()
	if d.Version == 0 {
		d.Version = SchemaVersion
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

// Decode reads and validates a dataset. It never returns a partially valid
// dataset: any schema violation fails the whole load.
func Decode(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	var d Dataset
	if err := dec.Decode(&d); err != nil {
		return nil, &SchemaError{Field: "(root)", Reason: err.Error()}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save atomically publishes the dataset at path: the file is written to a
// temporary sibling and renamed over the target, so readers never observe a
// partial write.
func Save(path string, d *Dataset) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dataset-*.json")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, d); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish dataset: %w", err)
	}
	return nil
}

// Load reads and validates the dataset at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
