// Package vector provides nearest-neighbour search over embedding vectors.
package vector

import "context"

// Index stores vectors by id and answers top-k similarity queries.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Dimensions() int
	Size() int
	Close() error
}

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}
