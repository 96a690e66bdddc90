package embedding

import (
	"context"
	"testing"

	"github.com/hyperjump/tanya/internal/vector"
)

func TestHashEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Retrieval augmented generation")
	b, _ := e.Embed(ctx, "Retrieval augmented generation")
	if len(a) != 64 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding is not deterministic")
		}
	}
	if n := vector.L2Norm(a); n < 0.999 || n > 1.001 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestHashEmbedder_sharedWordsScoreHigher(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "How do penguins keep warm?")
	near, _ := e.Embed(ctx, "Penguins keep warm with dense feathers.")
	far, _ := e.Embed(ctx, "The stock market closed higher today.")
	if vector.Cosine(q, near) <= vector.Cosine(q, far) {
		t.Errorf("related text should be closer: near=%f far=%f", vector.Cosine(q, near), vector.Cosine(q, far))
	}
}

func TestHashEmbedder_emptyText(t *testing.T) {
	v, err := NewHashEmbedder(0).Embed(context.Background(), "  ...  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 384 || vector.L2Norm(v) != 0 {
		t.Errorf("expected 384-dim zero vector, got len=%d norm=%f", len(v), vector.L2Norm(v))
	}
}

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
