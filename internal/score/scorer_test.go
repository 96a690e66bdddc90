package score

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/tanya/internal/embedding"
)

func TestScorer_Similarity(t *testing.T) {
	s := New(embedding.NewHashEmbedder(256))
	ctx := context.Background()

	same, err := s.Similarity(ctx, "penguins live in Antarctica", "Penguins live in Antarctica.")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(same-1) > 1e-6 {
		t.Errorf("identical terms should score 1, got %f", same)
	}

	related, _ := s.Similarity(ctx, "penguins live in Antarctica", "many penguins live on ice")
	unrelated, _ := s.Similarity(ctx, "penguins live in Antarctica", "quarterly revenue grew")
	if related <= unrelated {
		t.Errorf("related=%f should exceed unrelated=%f", related, unrelated)
	}
	for _, v := range []float64{same, related, unrelated} {
		if v < -1 || v > 1 {
			t.Errorf("score %f out of range", v)
		}
	}

	empty, err := s.Similarity(ctx, "", "anything")
	if err != nil || empty != 0 {
		t.Errorf("empty text: score=%f err=%v", empty, err)
	}
}

type failingEmbedder struct{ *embedding.HashEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestScorer_EmbedError(t *testing.T) {
	s := New(failingEmbedder{embedding.NewHashEmbedder(8)})
	if _, err := s.Similarity(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error")
	}
}
