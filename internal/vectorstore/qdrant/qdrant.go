package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"insightai/internal/domain"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g. "https://example.qdrant.io:6334").
	URL string

	// APIKey is an optional API key for authentication.
	APIKey string
}

// Store implements domain.VectorStore over the Qdrant gRPC client.
type Store struct {
	client *qdrant.Client
}

// New creates a Qdrant-backed vector store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	parsed := cfg.URL
	if !strings.HasPrefix(parsed, "http://") && !strings.HasPrefix(parsed, "https://") {
		parsed = "https://" + parsed
	}
	u, err := url.Parse(parsed)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	host := u.Hostname()
	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// CreateCollection creates a cosine-distance collection of the given
// dimension.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("collection %s: %w", name, domain.ErrCollectionExists)
		}
		return fmt.Errorf("qdrant create collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection drops a collection, reporting a missing collection
// distinctly so callers can treat "already gone" as success.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant collection exists %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("qdrant delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes chunks and their vectors as points, waiting for the write
// to be applied so a successful ingest is immediately queryable.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("collection %s: chunks and vectors length mismatch", collection)
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(ch.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":  ch.Text,
				"index": int64(ch.Index),
			}),
		}
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
		}
		return fmt.Errorf("qdrant upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Query runs a top-k similarity search with payloads.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("qdrant query %s: %w", collection, err)
	}
	results := make([]domain.SearchResult, 0, len(points))
	for _, point := range points {
		r := domain.SearchResult{Score: point.Score}
		if point.Id != nil {
			if id := point.Id.GetUuid(); id != "" {
				r.Chunk.ID = id
			}
		}
		if point.Payload != nil {
			if v, ok := point.Payload["text"]; ok {
				r.Chunk.Text = v.GetStringValue()
			}
			if v, ok := point.Payload["index"]; ok {
				r.Chunk.Index = int(v.GetIntegerValue())
			}
		}
		results = append(results, r)
	}
	return results, nil
}
