// Package models defines core data structures for the knowledge base, the
// conversation and answers.
package models

import "time"

// Collection is a named set of records in the knowledge base.
type Collection struct {
	Name       string    `json:"name" db:"name"`
	Dimensions int       `json:"dimensions" db:"dimensions"` // 0 until the first record is stored
	Embedder   string    `json:"embedder" db:"embedder"`     // "" until an embedder is bound
	Records    int       `json:"records" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Record is one stored passage with its embedding. Text is unique within a
// collection and ID is the passage's insertion index.
type Record struct {
	ID        string    `json:"id" db:"id"`
	Text      string    `json:"text" db:"document"`
	Embedding []float32 `json:"-" db:"embedding"`
}
