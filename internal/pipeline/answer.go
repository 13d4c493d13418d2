package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"insightai/internal/domain"
)

// Answerer embeds a question, retrieves the top-k nearest chunks from a
// collection and composes an answer through the generator.
type Answerer struct {
	embedder  domain.Embedder
	store     domain.VectorStore
	generator domain.Generator
	topK      int
	log       *zap.Logger
}

// NewAnswerer wires the retrieval-answer pipeline.
func NewAnswerer(e domain.Embedder, store domain.VectorStore, g domain.Generator, topK int, log *zap.Logger) *Answerer {
	if topK <= 0 {
		topK = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Answerer{embedder: e, store: store, generator: g, topK: topK, log: log}
}

// Answer returns the generator's output for the question against the
// collection. A collection deleted between validation and retrieval
// surfaces as session expiry, the same signal Validate gives, never as
// an opaque internal error.
func (p *Answerer) Answer(ctx context.Context, question, collection string) (string, error) {
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	results, err := p.store.Query(ctx, collection, vec, p.topK)
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return "", domain.ErrSessionExpired
		}
		return "", fmt.Errorf("query %s: %w", collection, err)
	}
	contextChunks := make([]string, 0, len(results))
	for _, r := range results {
		contextChunks = append(contextChunks, r.Chunk.Text)
	}
	answer, err := p.generator.Generate(ctx, question, contextChunks)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	p.log.Debug("question answered",
		zap.String("collection", collection),
		zap.Int("retrieved", len(results)))
	return answer, nil
}
