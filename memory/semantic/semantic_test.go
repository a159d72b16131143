package semantic_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mnemohq/mnemo/memory"
	"github.com/mnemohq/mnemo/memory/semantic"
)

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) Dimensions() int { return 3 }

// stubBackend records inserts and serves canned query hits, so tests control
// similarity values exactly.
type stubBackend struct {
	inserted  []memory.Memory
	hits      []memory.Hit
	insertErr error
	queryErr  error
	deleteErr error
}

func (b *stubBackend) Insert(ctx context.Context, mem memory.Memory) error {
	if b.insertErr != nil {
		return b.insertErr
	}
	b.inserted = append(b.inserted, mem)
	return nil
}

func (b *stubBackend) Query(ctx context.Context, embedding []float32, limit int, category memory.Category) ([]memory.Hit, error) {
	if b.queryErr != nil {
		return nil, b.queryErr
	}
	return b.hits, nil
}

func (b *stubBackend) Get(ctx context.Context, id string) (memory.Memory, error) {
	for _, mem := range b.inserted {
		if mem.ID == id {
			return mem, nil
		}
	}
	return memory.Memory{}, &memory.NotFoundError{ID: id}
}

func (b *stubBackend) Delete(ctx context.Context, id string) error {
	return b.deleteErr
}

func (b *stubBackend) Close() error { return nil }

func hit(content string, similarity float64) memory.Hit {
	return memory.Hit{Memory: memory.Memory{Content: content}, Similarity: similarity}
}

func TestStore_AssignsIDAndDefaults(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{}
	store := semantic.New(backend, &stubEmbedder{})

	id, err := store.Store(ctx, "I prefer green tea", "", nil, 0.8)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if id == "" {
		t.Fatal("Store returned an empty ID")
	}
	if len(backend.inserted) != 1 {
		t.Fatalf("got %d inserts, want 1", len(backend.inserted))
	}
	mem := backend.inserted[0]
	if mem.Category != memory.CategoryGeneral {
		t.Errorf("category = %q, want default %q", mem.Category, memory.CategoryGeneral)
	}
	if len(mem.Embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(mem.Embedding))
	}
	if mem.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestStore_RejectsEmptyContent(t *testing.T) {
	store := semantic.New(&stubBackend{}, &stubEmbedder{})

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := store.Store(context.Background(), content, memory.CategoryGeneral, nil, 0.5)
		var encErr *memory.EncodingError
		if !errors.As(err, &encErr) {
			t.Errorf("Store(%q) error = %v, want *EncodingError", content, err)
		}
	}
}

func TestStore_RejectsConfidenceOutOfRange(t *testing.T) {
	store := semantic.New(&stubBackend{}, &stubEmbedder{})

	for _, confidence := range []float64{-0.1, 1.1} {
		_, err := store.Store(context.Background(), "content", memory.CategoryGeneral, nil, confidence)
		var argErr *memory.InvalidArgumentError
		if !errors.As(err, &argErr) {
			t.Errorf("Store with confidence %v: error = %v, want *InvalidArgumentError", confidence, err)
		}
	}
}

func TestStore_WrapsEmbedderFailure(t *testing.T) {
	cause := errors.New("model offline")
	store := semantic.New(&stubBackend{}, &stubEmbedder{err: cause})

	_, err := store.Store(context.Background(), "content", memory.CategoryGeneral, nil, 0.5)
	var encErr *memory.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want *EncodingError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error does not wrap the embedder failure: %v", err)
	}
}

func TestStore_WrapsBackendFailure(t *testing.T) {
	cause := errors.New("disk full")
	store := semantic.New(&stubBackend{insertErr: cause}, &stubEmbedder{})

	_, err := store.Store(context.Background(), "content", memory.CategoryGeneral, nil, 0.5)
	var persistErr *memory.PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if persistErr.Op != "insert" {
		t.Errorf("op = %q, want insert", persistErr.Op)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error does not wrap the backend failure: %v", err)
	}
}

func TestSearch_RejectsInvalidOptions(t *testing.T) {
	store := semantic.New(&stubBackend{}, &stubEmbedder{})

	cases := []memory.SearchOptions{
		{Limit: -1},
		{MinSimilarity: -0.1},
		{MinSimilarity: 1.5},
	}
	for _, opts := range cases {
		_, err := store.Search(context.Background(), "query", opts)
		var argErr *memory.InvalidArgumentError
		if !errors.As(err, &argErr) {
			t.Errorf("Search(%+v) error = %v, want *InvalidArgumentError", opts, err)
		}
	}
}

func TestSearch_FiltersSortsAndTruncates(t *testing.T) {
	backend := &stubBackend{hits: []memory.Hit{
		hit("low", 0.4),
		hit("top", 1.0),
		hit("floor", 0.5),
		hit("mid", 0.7),
	}}
	store := semantic.New(backend, &stubEmbedder{})

	results, err := store.Search(context.Background(), "query", memory.SearchOptions{Limit: 2, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Memory.Content != "top" || results[1].Memory.Content != "mid" {
		t.Errorf("results = [%s %s], want [top mid]", results[0].Memory.Content, results[1].Memory.Content)
	}
}

func TestSearch_FloorIsInclusive(t *testing.T) {
	backend := &stubBackend{hits: []memory.Hit{
		hit("exact", 1.0),
		hit("close", 0.99),
	}}
	store := semantic.New(backend, &stubEmbedder{})

	// MinSimilarity 1.0 keeps only exact matches.
	results, err := store.Search(context.Background(), "query", memory.SearchOptions{MinSimilarity: 1.0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.Content != "exact" {
		t.Fatalf("results = %+v, want only the exact match", results)
	}
}

func TestSearch_WrapsBackendFailure(t *testing.T) {
	cause := errors.New("backend down")
	store := semantic.New(&stubBackend{queryErr: cause}, &stubEmbedder{})

	_, err := store.Search(context.Background(), "query", memory.SearchOptions{})
	var persistErr *memory.PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if persistErr.Op != "query" {
		t.Errorf("op = %q, want query", persistErr.Op)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	store := semantic.New(&stubBackend{}, &stubEmbedder{})

	_, err := store.GetByID(context.Background(), "missing")
	var nfErr *memory.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if nfErr.ID != "missing" {
		t.Errorf("ID = %q, want missing", nfErr.ID)
	}
}

func TestBatchStore_PerItemAtomicity(t *testing.T) {
	backend := &stubBackend{}
	store := semantic.New(backend, &stubEmbedder{})

	specs := []memory.MemorySpec{
		{Content: "first", Confidence: 0.5},
		{Content: "", Confidence: 0.5},
		{Content: "third", Confidence: 0.5},
	}
	ids, err := store.BatchStore(context.Background(), specs)
	if err == nil {
		t.Fatal("BatchStore succeeded, want failure on the empty item")
	}
	if !strings.Contains(err.Error(), "batch item 1") {
		t.Errorf("error = %v, want it to name batch item 1", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d stored IDs, want 1 (the item before the failure)", len(ids))
	}
	if len(backend.inserted) != 1 || backend.inserted[0].Content != "first" {
		t.Errorf("inserted = %+v, want only the first item", backend.inserted)
	}
}

func TestDelete_WrapsBackendFailure(t *testing.T) {
	cause := errors.New("backend down")
	store := semantic.New(&stubBackend{deleteErr: cause}, &stubEmbedder{})

	err := store.Delete(context.Background(), "id")
	var persistErr *memory.PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}

	// Absence is reported as-is, not wrapped.
	store = semantic.New(&stubBackend{deleteErr: &memory.NotFoundError{ID: "id"}}, &stubEmbedder{})
	err = store.Delete(context.Background(), "id")
	var nfErr *memory.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
}
