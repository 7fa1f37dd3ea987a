// Package vectordb implements the gateway's vector database contract
// (spec §6): search, collection creation, and point upsert, against a
// pluggable Driver so the RAG orchestrator never depends on a concrete
// client type.
package vectordb

import "context"

// Point is a single vector plus its payload, written by UpsertPoints on
// behalf of PersistEmbeddings (internal/rag ingestion helpers, §4.7.1).
type Point struct {
	Vector  []float32
	Payload map[string]string
}

// ScoredPoint is a single hit returned from SearchPoints. Source is read from the
// point's "source" payload field — the convention the chunk-ingestion
// helpers use when writing points (spec §4.7.1).
type ScoredPoint struct {
	Source string
	Score  float32
}

// Driver is the gateway's vector DB contract. A Driver instance is bound to
// one server URL; the collection name is passed per call since a single
// server may host many collections.
type Driver interface {
	// SearchPoints runs a top-k similarity search in collection, filtering
	// out hits below scoreThreshold.
	SearchPoints(ctx context.Context, collection string, queryVector []float32, limit uint64, scoreThreshold float32, apiKey string) ([]ScoredPoint, error)

	// CreateCollection idempotently creates collection with a cosine-
	// distance index of the given dimensionality.
	CreateCollection(ctx context.Context, collection string, dim uint64, apiKey string) error

	// UpsertPoints writes points into collection.
	UpsertPoints(ctx context.Context, collection string, points []Point, apiKey string) error

	// Close releases any underlying connection resources.
	Close() error
}
