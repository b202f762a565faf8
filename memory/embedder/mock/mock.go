// Package mock provides a deterministic embedder for tests and demos
// that must run without model files or API keys.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic embeddings from a text hash.
// Identical texts always map to identical vectors, so tests can assert
// exact-match searches score 1.0, but there is no real semantic
// similarity between different texts.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder producing vectors of the given size.
// dims <= 0 defaults to 384 (all-MiniLM-L6-v2 size).
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 384
	}
	return &Embedder{dimensions: dims}
}

// Embed creates a unit-length vector seeded by the FNV hash of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// LCG stream seeded by the text hash, mapped into [-1, 1].
	seed := h.Sum64()
	embedding := make([]float32, e.dimensions)
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i, v := range embedding {
			embedding[i] = float32(float64(v) / norm)
		}
	}

	return embedding, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
