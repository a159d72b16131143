// Package cache provides a ristretto-backed caching decorator for any
// Embedder. Embedders are deterministic by contract, so caching by exact
// text is sound; the win is avoiding repeated model inference for texts the
// system embeds more than once (importance topics, repeated queries,
// consolidation passes).
package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"

	"github.com/mnemohq/mnemo/memory"
)

// Embedder wraps an inner Embedder with a ristretto cache keyed by text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// Config sizes the cache.
type Config struct {
	// MaxBytes bounds the cached vector data. Default: 64 MiB.
	MaxBytes int64

	// MaxEntries sizes ristretto's frequency counters. Default: 100k.
	MaxEntries int64
}

// New wraps the inner embedder. A zero Config selects the defaults.
func New(inner memory.Embedder, cfg Config) (*Embedder, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise delegates to the
// inner embedder and caches the result. Returned slices are copies, so
// callers may mutate them without corrupting the cache.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return cloneVector(v.([]float32)), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec))*4)
	return cloneVector(vec), nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until buffered cache writes are applied. Ristretto admits
// entries asynchronously; tests call this before asserting hits.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
