// Package keyword indexes stored passages for term lookup and spelling
// suggestions.
package keyword

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// Passage is one knowledge-base record as seen by the keyword index.
type Passage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SearchOptions optional parameters for keyword search. Nil means exact term matching.
type SearchOptions struct {
	// Fuzzy enables typo-tolerant matching.
	Fuzzy bool
	// Fuzziness is the maximum edit distance per term (1 or 2). Default 2.
	Fuzziness int
}

// PassageIndex is a keyword index over passages.
type PassageIndex interface {
	Index(ctx context.Context, passages []Passage) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*models.PassageHit, error)
	DocCount() (uint64, error)
	Close() error
}

// TermDictionary provides access to the term dictionary for spell checking.
type TermDictionary interface {
	// GetAllTerms returns all unique terms in the index.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
}
