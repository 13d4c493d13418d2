package chunker

import (
	"strings"

	"insightai/internal/domain"
)

// Splitter cuts text into fixed-size rune windows with overlap. The
// overlap exists so a fact spanning a window boundary is still
// retrievable from at least one chunk.
type Splitter struct {
	size    int
	overlap int
}

// New creates a splitter. A non-positive size falls back to 1000 runes;
// the overlap is clamped below the size so the window always advances.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split emits a window every size-overlap runes while text remains; tail
// windows may be shorter than size.
func (s *Splitter) Split(text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := s.size - s.overlap
	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
	}
	return chunks
}
