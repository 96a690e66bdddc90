// Package embedding turns text into fixed-length vectors.
//
// Implementations are deterministic for identical input and produce vectors
// of one dimension for their whole lifetime.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is 0 for remote models until the first vector has been returned.
	Dimensions() int
	// Name identifies the model. Vectors from differently named embedders
	// are not comparable even when their dimensions agree.
	Name() string
	Close() error
}

// embedEach implements EmbedBatch with one Embed call per text.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
