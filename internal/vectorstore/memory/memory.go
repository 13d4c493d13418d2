package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"insightai/internal/domain"
)

type collection struct {
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float32
}

// Store is an in-process vector store with named collections and
// brute-force cosine search. It backs tests and the offline CLI.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// CreateCollection registers a new named collection.
func (s *Store) CreateCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("collection %s: invalid dimension %d", name, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrCollectionExists)
	}
	s.collections[name] = &collection{dimension: dimension}
	return nil
}

// DeleteCollection drops a collection and all its points.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	delete(s.collections, name)
	return nil
}

// Upsert appends chunks and their vectors to a collection.
func (s *Store) Upsert(_ context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("collection %s: chunks and vectors length mismatch", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	for _, v := range vectors {
		if len(v) != c.dimension {
			return fmt.Errorf("collection %s: vector dimension %d, want %d", name, len(v), c.dimension)
		}
	}
	c.chunks = append(c.chunks, chunks...)
	c.vectors = append(c.vectors, vectors...)
	return nil
}

// Query returns the topK chunks most similar to the given vector.
func (s *Store) Query(_ context.Context, name string, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	if topK <= 0 {
		topK = 3
	}
	results := make([]domain.SearchResult, 0, len(c.chunks))
	for i := range c.vectors {
		results = append(results, domain.SearchResult{
			Chunk: c.chunks[i],
			Score: cosine(c.vectors[i], vector),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
