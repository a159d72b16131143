package mock_test

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/mnemohq/mnemo/memory/embedder/mock"
)

func TestEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	embedder := mock.New()

	first, err := embedder.Embed(ctx, "my dog Max")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := embedder.Embed(ctx, "my dog Max")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical texts embedded differently")
	}

	other, err := embedder.Embed(ctx, "green tea")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if reflect.DeepEqual(first, other) {
		t.Error("different texts embedded identically")
	}
}

func TestEmbedder_UnitNorm(t *testing.T) {
	embedder := mock.New()
	vec, err := embedder.Embed(context.Background(), "my dog Max")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != mock.DefaultDimensions {
		t.Fatalf("got %d dimensions, want %d", len(vec), mock.DefaultDimensions)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-3 {
		t.Errorf("squared norm = %v, want ~1.0", norm)
	}
}

func TestEmbedder_CustomDimensions(t *testing.T) {
	embedder := mock.NewWithDimensions(16)
	if embedder.Dimensions() != 16 {
		t.Fatalf("Dimensions = %d, want 16", embedder.Dimensions())
	}
	vec, err := embedder.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 16 {
		t.Errorf("got %d dimensions, want 16", len(vec))
	}
}
