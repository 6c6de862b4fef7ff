// Package graph defines the optional external graph-database sink for a
// built dataset.
package graph

import (
	"context"

	"github.com/sixdegrees/bacond/internal/dataset"
)

// Repository receives a built dataset for external graph storage. The query
// engine never depends on it; it exists for ad-hoc exploration of the
// co-appearance graph in a graph database.
type Repository interface {
	// BulkLoad writes all actors and co-appearance relationships.
	BulkLoad(ctx context.Context, d *dataset.Dataset) error
	// Close releases resources.
	Close(ctx context.Context) error
}
