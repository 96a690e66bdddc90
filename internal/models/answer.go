package models

import (
	"fmt"
	"strings"
)

// Answer is the result of one question. Score is the cosine similarity
// between the answer and the retrieved context; it is 0 when Failed.
type Answer struct {
	Text       string   `json:"text"`
	Score      float64  `json:"score"`
	MemorySize int      `json:"memory_size"`
	Context    []string `json:"context,omitempty"`
	Failed     bool     `json:"failed,omitempty"`
}

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Query string `json:"query"`
}

// Validate trims the query and rejects an empty one.
func (r *ChatRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// PassageHit is a keyword match against stored passages.
type PassageHit struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IngestResult reports how many new passages a document contributed.
type IngestResult struct {
	Name  string `json:"name"`
	Added int    `json:"added"`
	Total int    `json:"total"`
}
