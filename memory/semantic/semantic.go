// Package semantic implements the long-term semantic store: it composes an
// Embedder and a VectorBackend into the durable, similarity-searchable
// memory tier.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemohq/mnemo/memory"
)

// Store is the long-term semantic store. Content is encoded exactly once at
// write time; stored embeddings are never recomputed implicitly.
//
// The default chromem backend answers queries with a full scan, which is
// fine at personal-assistant volumes; the qdrant backend is the
// approximate-nearest-neighbor extension point behind this same contract.
type Store struct {
	backend  memory.VectorBackend
	embedder memory.Embedder
}

// New creates a semantic store over the given backend and embedder.
func New(backend memory.VectorBackend, embedder memory.Embedder) *Store {
	return &Store{backend: backend, embedder: embedder}
}

// Store encodes content, persists a memory, and returns its ID. Empty
// content and embedder failures surface as *memory.EncodingError; backend
// failures as *memory.PersistenceError. Neither is ever swallowed.
func (s *Store) Store(ctx context.Context, content string, category memory.Category, metadata map[string]string, confidence float64) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", &memory.EncodingError{Err: errors.New("content is empty")}
	}
	if confidence < 0 || confidence > 1 {
		return "", &memory.InvalidArgumentError{Reason: fmt.Sprintf("confidence %v outside [0,1]", confidence)}
	}
	if category == "" {
		category = memory.CategoryGeneral
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", &memory.EncodingError{Err: err}
	}

	mem := memory.Memory{
		ID:         uuid.New().String(),
		Content:    content,
		Embedding:  embedding,
		Category:   category,
		CreatedAt:  time.Now(),
		Metadata:   metadata,
		Confidence: confidence,
	}
	if err := s.backend.Insert(ctx, mem); err != nil {
		return "", &memory.PersistenceError{Op: "insert", Err: err}
	}
	return mem.ID, nil
}

// Search encodes the query and returns memories ordered most relevant
// first, discarding any below opts.MinSimilarity and truncating to
// opts.Limit.
func (s *Store) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	if opts.Limit < 0 {
		return nil, &memory.InvalidArgumentError{Reason: fmt.Sprintf("limit %d is negative", opts.Limit)}
	}
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 {
		return nil, &memory.InvalidArgumentError{Reason: fmt.Sprintf("min similarity %v outside [0,1]", opts.MinSimilarity)}
	}
	if opts.Limit == 0 {
		opts.Limit = memory.DefaultSearchLimit
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &memory.EncodingError{Err: err}
	}

	hits, err := s.backend.Query(ctx, embedding, opts.Limit, opts.Category)
	if err != nil {
		return nil, &memory.PersistenceError{Op: "query", Err: err}
	}

	results := make([]memory.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < opts.MinSimilarity {
			continue
		}
		results = append(results, memory.SearchResult{Memory: hit.Memory, Similarity: hit.Similarity})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// GetByID retrieves a single memory; absence surfaces as
// *memory.NotFoundError.
func (s *Store) GetByID(ctx context.Context, id string) (memory.Memory, error) {
	return s.backend.Get(ctx, id)
}

// BatchStore stores the specs in order with per-item atomicity: a failure
// on item k keeps items before k and reports which IDs succeeded alongside
// the error.
func (s *Store) BatchStore(ctx context.Context, specs []memory.MemorySpec) ([]string, error) {
	ids := make([]string, 0, len(specs))
	for i, spec := range specs {
		id, err := s.Store(ctx, spec.Content, spec.Category, spec.Metadata, spec.Confidence)
		if err != nil {
			return ids, fmt.Errorf("batch item %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes a memory permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		var nf *memory.NotFoundError
		if errors.As(err, &nf) {
			return err
		}
		return &memory.PersistenceError{Op: "delete", Err: err}
	}
	return nil
}
