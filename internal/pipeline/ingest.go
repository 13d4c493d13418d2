package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"insightai/internal/chunker"
	"insightai/internal/domain"
	"insightai/internal/loader"
)

// Ingester loads a content source, splits it into overlapping chunks,
// embeds each chunk and upserts everything into a target collection.
type Ingester struct {
	loader   *loader.Loader
	splitter *chunker.Splitter
	embedder domain.Embedder
	store    domain.VectorStore
	log      *zap.Logger
}

// NewIngester wires the ingestion pipeline.
func NewIngester(l *loader.Loader, s *chunker.Splitter, e domain.Embedder, store domain.VectorStore, log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{loader: l, splitter: s, embedder: e, store: store, log: log}
}

// Ingest populates the collection and returns the number of chunks
// written. Content errors pass through unchanged; a vanished collection
// surfaces as session expiry. All chunks are embedded before the single
// upsert call, so a successful return means every chunk was written.
func (p *Ingester) Ingest(ctx context.Context, src loader.Source, collection string) (int, error) {
	text, err := p.loader.Load(ctx, src)
	if err != nil {
		return 0, err
	}
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: document produced no text", domain.ErrUnsupportedContent)
	}
	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		vec, err := p.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		vectors[i] = vec
	}
	if err := p.store.Upsert(ctx, collection, chunks, vectors); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return 0, domain.ErrSessionExpired
		}
		return 0, fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	p.log.Info("document ingested",
		zap.String("collection", collection),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
