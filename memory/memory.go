package memory

import (
	"context"
	"math"
	"time"
)

// Memory is a durable unit of remembered information. It is immutable once
// written; only explicit update or delete operations may change it.
//
// The embedding is computed exactly once, at write time, and its length must
// match the active Embedder's Dimensions(). Mixing embeddings produced by
// different models without re-encoding is undefined behavior.
type Memory struct {
	// ID uniquely identifies the memory. Assigned on insert.
	ID string

	// Content is the text body: a single statement or a merged
	// multi-turn block produced by consolidation. Never empty.
	Content string

	// Embedding is the fixed-length vector for similarity search.
	Embedding []float32

	// Category is one of the fixed category labels (CategoryGeneral
	// when nothing matched).
	Category Category

	// CreatedAt is the creation time.
	CreatedAt time.Time

	// Metadata carries open key/value provenance: source, owning user,
	// pointers to originating interactions.
	Metadata map[string]string

	// Confidence is certainty/importance in [0,1]. Consolidation may
	// boost it but never decreases it, capped at 1.0.
	Confidence float64
}

// Interaction is one ephemeral user/assistant exchange. It lives in the
// short-term store until session end triggers consolidation, or until the
// store's TTL elapses, whichever comes first.
type Interaction struct {
	UserID            string            `json:"user_id"`
	Timestamp         time.Time         `json:"timestamp"`
	Relevance         Relevance         `json:"relevance"`
	UserMessage       string            `json:"user_message"`
	AssistantResponse string            `json:"assistant_response"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CombinedText renders the exchange as the single block used for embedding
// and pattern matching.
func (it Interaction) CombinedText() string {
	return it.UserMessage + " " + it.AssistantResponse
}

// Embedder converts text to vector embeddings. Implementations must be
// deterministic: two calls with identical text return identical vectors.
//
// Implementations: mock (testing), onnx (local model), cache (ristretto
// decorator over either).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Hit is a single similarity-search result from a VectorBackend.
type Hit struct {
	Memory     Memory
	Similarity float64
}

// VectorBackend is the storage layer beneath the long-term semantic store.
// Implementations: chromem (embedded, full scan), qdrant (gRPC, ANN).
//
// Backends store memories verbatim and answer similarity queries; they never
// create memories on their own initiative.
type VectorBackend interface {
	// Insert persists a memory. The embedding must already be set.
	Insert(ctx context.Context, mem Memory) error

	// Query returns up to limit memories by descending cosine similarity
	// to the given embedding. An empty category means no filter.
	Query(ctx context.Context, embedding []float32, limit int, category Category) ([]Hit, error)

	// Get retrieves a memory by ID. Returns a *NotFoundError when absent.
	Get(ctx context.Context, id string) (Memory, error)

	// Delete removes a memory permanently.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// ShortTermStore holds recent interactions per user with a time-to-live.
type ShortTermStore interface {
	// Add appends an interaction for its user.
	Add(ctx context.Context, it Interaction) error

	// Recent returns up to limit interactions for the user, most recent
	// first.
	Recent(ctx context.Context, userID string, limit int) ([]Interaction, error)

	// All returns every live interaction for the user. Order is not
	// guaranteed; the consolidator re-sorts.
	All(ctx context.Context, userID string) ([]Interaction, error)

	// Drain atomically reads and removes every live interaction for the
	// user. Callers serialize Drain against Add for the same user.
	Drain(ctx context.Context, userID string) ([]Interaction, error)

	// Close releases resources.
	Close() error
}

// SearchOptions controls a long-term store search.
type SearchOptions struct {
	// Limit caps the number of results. Zero means DefaultSearchLimit;
	// negative is invalid.
	Limit int

	// MinSimilarity discards results whose cosine similarity to the
	// query falls below it. Must be in [0,1].
	MinSimilarity float64

	// Category restricts the search to one category. Empty means all.
	Category Category
}

// SearchResult pairs a memory with its similarity to the query.
type SearchResult struct {
	Memory     Memory
	Similarity float64
}

// MemorySpec describes one memory for Store or BatchStore.
type MemorySpec struct {
	Content    string
	Category   Category
	Metadata   map[string]string
	Confidence float64
}

// LongTermStore is the durable, semantically searchable memory tier.
// The semantic subpackage provides the implementation.
type LongTermStore interface {
	// Store encodes content, persists a memory, and returns its ID.
	// Fails with *EncodingError when the embedder rejects the input and
	// *PersistenceError when the backend write fails.
	Store(ctx context.Context, content string, category Category, metadata map[string]string, confidence float64) (string, error)

	// Search returns memories ordered most relevant first.
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)

	// GetByID retrieves a single memory.
	GetByID(ctx context.Context, id string) (Memory, error)

	// BatchStore stores several memories with per-item atomicity: a
	// failure on item k does not roll back items before it. The returned
	// IDs cover the items that succeeded, in order.
	BatchStore(ctx context.Context, specs []MemorySpec) ([]string, error)
}

// DefaultSearchLimit is used when SearchOptions.Limit is zero.
const DefaultSearchLimit = 5

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||). It returns 0 when
// either vector has zero norm or the lengths differ, so that degenerate
// inputs rank last instead of erroring.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
