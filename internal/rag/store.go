package rag

import "context"

// Document is one embedded chunk ready for indexing.
type Document struct {
	ID        string
	Text      string
	Embedding []float64
	Metadata  map[string]any
}

// QueryResult holds one vector query's hits, position-aligned across slices.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

// VectorStore indexes embedded chunks and answers nearest-neighbour queries.
// Distances are 1 - similarity, so callers convert back with score = 1 - d.
type VectorStore interface {
	Upsert(ctx context.Context, docs []Document) error
	Query(ctx context.Context, embedding []float64, topK int, filter map[string]string) (*QueryResult, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}
