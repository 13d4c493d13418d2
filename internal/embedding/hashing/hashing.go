package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder is a deterministic local embedder using the feature-hashing
// trick: token counts are folded into a fixed number of buckets and the
// resulting vector is L2-normalised. It needs no corpus pass and no
// network, which makes it the default for the offline CLI and tests.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

// NewEmbedder creates a hashing embedder of the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
	}
}

// Dimension returns the number of hash buckets.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed folds the text's tokens into the bucket vector. Text without any
// tokens yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		slot := int(sum % uint32(e.dimension))
		// The high bit decides the sign so colliding tokens can cancel
		// instead of always accumulating.
		if sum&0x80000000 != 0 {
			vec[slot]--
		} else {
			vec[slot]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}
