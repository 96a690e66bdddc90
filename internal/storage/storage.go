// Package storage persists knowledge-base collections and their records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/tanya/internal/models"
)

// ErrDimensionMismatch is returned when a record's embedding length differs
// from the collection's.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrEmbedderMismatch is returned when a collection's records were embedded
// by a different model than the one binding to it.
var ErrEmbedderMismatch = errors.New("embedder mismatch")

// Storage is a path-addressed store of named collections. A collection holds
// records in insertion order; text and id are unique within it.
type Storage interface {
	// GetOrCreateCollection returns the named collection, creating it empty on first use.
	GetOrCreateCollection(ctx context.Context, name string) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]*models.Collection, error)

	// AddRecords appends records atomically. The first batch fixes the
	// collection's embedding dimension.
	AddRecords(ctx context.Context, collection string, records []*models.Record) error
	ListRecords(ctx context.Context, collection string) ([]*models.Record, error)
	// BindEmbedder records the embedder that produces the collection's
	// vectors. An empty collection accepts any embedder; once it holds
	// records only the bound one is accepted.
	BindEmbedder(ctx context.Context, collection, embedder string) error
	CountRecords(ctx context.Context, collection string) (int, error)

	Close() error
}
