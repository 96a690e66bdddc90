package search

import "fmt"

const (
	defaultLimit    = 10
	maxLimit        = 100
	defaultSnippet  = 240
	candidateFactor = 4
)

// Query is a passage search request.
type Query struct {
	Text           string
	Limit          int
	KeywordWeight  float64
	SemanticWeight float64
	Fuzzy          bool
	SnippetLength  int
}

// ProcessQuery validates q and applies defaults. Both weights zero means an
// even split; a negative weight is rejected.
func ProcessQuery(q *Query) error {
	if q.Text == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.KeywordWeight < 0 || q.SemanticWeight < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if q.KeywordWeight == 0 && q.SemanticWeight == 0 {
		q.KeywordWeight, q.SemanticWeight = 0.5, 0.5
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.SnippetLength <= 0 {
		q.SnippetLength = defaultSnippet
	}
	return nil
}
