package domain

import "context"

// Chunk is a bounded piece of an ingested document, stored as one
// retrievable unit.
type Chunk struct {
	ID    string
	Index int
	Text  string
}

// SearchResult is a matching chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// VectorStore is the capability wrapper around a remote vector database.
// Every call targets a named collection; callers own collection lifetime.
// Implementations must return ErrCollectionNotFound when the target
// collection does not exist, so deletion paths can treat "already gone"
// as success and query paths can map it onto session expiry.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, chunks []Chunk, vectors [][]float32) error
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)
}

// Embedder converts free text into a numeric vector representation.
// Dimension is fixed for the process lifetime.
type Embedder interface {
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator turns a question plus retrieved context into an answer.
type Generator interface {
	Generate(ctx context.Context, question string, contextChunks []string) (string, error)
}
