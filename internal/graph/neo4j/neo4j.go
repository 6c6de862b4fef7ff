// Package neo4j implements graph.Repository on Neo4j.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sixdegrees/bacond/internal/dataset"
)

// DefaultBatchSize bounds how many relationships one transaction writes.
const DefaultBatchSize = 500

// Neo4jRepository writes the co-appearance graph into Neo4j.
type Neo4jRepository struct {
	driver    neo4j.DriverWithContext
	batchSize int
}

// NewNeo4j creates a Neo4j-backed repository and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, username, password string, batchSize int) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Neo4jRepository{driver: driver, batchSize: batchSize}, nil
}

// BulkLoad merges every actor as an :Actor node and every co-appearance as a
// SHARED_SCREEN relationship carrying the shared-movie count. Relationships
// are written once per unordered pair and batched with UNWIND.
func (r *Neo4jRepository) BulkLoad(ctx context.Context, d *dataset.Dataset) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	actors := make([]map[string]any, 0, len(d.ActorsGraph))
	for actor := range d.ActorsGraph {
		actors = append(actors, map[string]any{"name": actor})
	}
	if err := r.writeBatched(ctx, session,
		"UNWIND $rows AS row MERGE (:Actor {name: row.name})", actors); err != nil {
		return fmt.Errorf("store actors: %w", err)
	}

	var rels []map[string]any
	for actor, coActors := range d.ActorsGraph {
		for coActor, weight := range coActors {
			if actor >= coActor {
				// Adjacency is symmetric; write each pair once.
				continue
			}
			rels = append(rels, map[string]any{
				"a":      actor,
				"b":      coActor,
				"weight": weight,
			})
		}
	}
	if err := r.writeBatched(ctx, session,
		"UNWIND $rows AS row "+
			"MATCH (a:Actor {name: row.a}), (b:Actor {name: row.b}) "+
			"MERGE (a)-[s:SHARED_SCREEN]-(b) SET s.movies = row.weight", rels); err != nil {
		return fmt.Errorf("store co-appearances: %w", err)
	}
	return nil
}

func (r *Neo4jRepository) writeBatched(ctx context.Context, session neo4j.SessionWithContext, query string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		batch := rows[start:end]
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"rows": batch})
			return nil, err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the underlying driver.
func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
