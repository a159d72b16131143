// Package chromem provides the default VectorBackend on chromem-go, a pure
// Go embedded vector database. Queries are a full scan over the collection,
// which is the intended behavior at personal-assistant memory volumes.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemohq/mnemo/memory"
)

const collectionName = "memories"

// Backend stores memories in a single chromem collection with a sidecar
// index by ID, since chromem exposes no direct lookup by document ID.
type Backend struct {
	db  *chromem.DB
	col *chromem.Collection

	mu   sync.RWMutex
	byID map[string]memory.Memory
}

// New creates an in-memory chromem backend.
func New() (*Backend, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Backend{
		db:   db,
		col:  col,
		byID: make(map[string]memory.Memory),
	}, nil
}

// Insert persists a memory. The embedding must already be set.
func (b *Backend) Insert(ctx context.Context, mem memory.Memory) error {
	doc := chromem.Document{
		ID:        mem.ID,
		Content:   mem.Content,
		Embedding: mem.Embedding,
		Metadata:  encodeMetadata(mem),
	}
	if err := b.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	b.mu.Lock()
	b.byID[mem.ID] = mem
	b.mu.Unlock()
	return nil
}

// Query returns up to limit memories by descending similarity. chromem
// rejects nResults above the collection size, so the limit is clamped to
// the current count first.
func (b *Backend) Query(ctx context.Context, embedding []float32, limit int, category memory.Category) ([]memory.Hit, error) {
	count := b.col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": string(category)}
	}

	results, err := b.col.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	hits := make([]memory.Hit, 0, len(results))
	for _, result := range results {
		mem, ok := b.byID[result.ID]
		if !ok {
			continue
		}
		hits = append(hits, memory.Hit{Memory: mem, Similarity: float64(result.Similarity)})
	}
	return hits, nil
}

// Get retrieves a memory by ID from the sidecar index.
func (b *Backend) Get(ctx context.Context, id string) (memory.Memory, error) {
	b.mu.RLock()
	mem, ok := b.byID[id]
	b.mu.RUnlock()
	if !ok {
		return memory.Memory{}, &memory.NotFoundError{ID: id}
	}
	return mem, nil
}

// Delete removes a memory from the collection and the index.
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	_, ok := b.byID[id]
	delete(b.byID, id)
	b.mu.Unlock()
	if !ok {
		return &memory.NotFoundError{ID: id}
	}
	if err := b.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close releases resources. chromem keeps everything in memory, so there is
// nothing to release.
func (b *Backend) Close() error {
	return nil
}

// encodeMetadata flattens a memory's fields into chromem's string metadata,
// so category filtering works server-side in QueryEmbedding.
func encodeMetadata(mem memory.Memory) map[string]string {
	metadata := map[string]string{
		"category":   string(mem.Category),
		"created_at": mem.CreatedAt.Format(time.RFC3339),
		"confidence": strconv.FormatFloat(mem.Confidence, 'f', -1, 64),
	}
	for k, v := range mem.Metadata {
		metadata[k] = v
	}
	return metadata
}
