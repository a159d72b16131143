// Package mock provides a deterministic embedder for testing and for
// running the system without a model file. Vectors are derived from a hash
// of the text, so identical input always embeds identically, but the
// vectors carry no semantic meaning.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so the mock can stand in for
// the ONNX embedder without reconfiguring stores.
const DefaultDimensions = 384

// Embedder generates hash-based unit vectors.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder at DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder with a custom vector size.
func NewWithDimensions(dimensions int) *Embedder {
	return &Embedder{dimensions: dimensions}
}

// Embed derives a deterministic unit vector from the text's FNV-1a hash,
// expanded through a linear congruential generator.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, e.dimensions)
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
