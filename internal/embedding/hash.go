package embedding

import (
	"context"

	"github.com/hyperjump/tanya/pkg/utils"
)

// HashEmbedder is a bag-of-words embedder using the hashing trick: each term
// lands in one signed bucket. Texts sharing words score higher, which makes
// it a usable offline fallback and a deterministic embedder for tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder; non-positive dimensions default to 384.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length term vector of text. Text without terms
// yields the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		h := HashString(term)
		sign := float32(1)
		if (h/e.dimensions)%2 == 1 {
			sign = -1
		}
		emb[h%e.dimensions] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Name() string {
	return "hash"
}

func (e *HashEmbedder) Close() error {
	return nil
}
