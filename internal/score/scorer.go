// Package score measures how closely an answer follows its context.
package score

import (
	"context"
	"fmt"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/hyperjump/tanya/pkg/utils"
)

// Scorer compares texts by the cosine similarity of their embeddings.
type Scorer struct {
	emb embedding.Embedder
}

func New(emb embedding.Embedder) *Scorer {
	return &Scorer{emb: emb}
}

// Similarity embeds a and b in one batch and returns their cosine
// similarity in [-1, 1]. A text without content scores 0.
func (s *Scorer) Similarity(ctx context.Context, a, b string) (float64, error) {
	embs, err := s.emb.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		return 0, fmt.Errorf("failed to embed texts for scoring: %w", err)
	}
	if len(embs) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(embs))
	}
	return utils.Clamp(vector.Cosine(embs[0], embs[1]), -1, 1), nil
}
