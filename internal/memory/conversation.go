// Package memory keeps the linear log of conversation turns.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/tanya/internal/models"
)

// DefaultWindow is the number of recent turns replayed to the generator.
const DefaultWindow = 8

// Conversation is an append-only, process-local log of turns. It is never
// truncated; Recent selects the window handed to the generator.
type Conversation struct {
	mu    sync.RWMutex
	turns []models.Turn
	now   func() time.Time
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{now: time.Now}
}

// Append records one exchange and returns it.
func (c *Conversation) Append(input, output string) models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := models.Turn{
		ID:     uuid.NewString(),
		Input:  input,
		Output: output,
		At:     c.now(),
	}
	c.turns = append(c.turns, t)
	return t
}

// Recent returns the last min(n, Size()) turns, oldest first. n <= 0 yields
// no turns.
func (c *Conversation) Recent(n int) []models.Turn {
	n = max(n, 0)
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := max(len(c.turns)-n, 0)
	out := make([]models.Turn, len(c.turns)-start)
	copy(out, c.turns[start:])
	return out
}

// Size is the number of turns ever appended.
func (c *Conversation) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// All returns a copy of every turn.
func (c *Conversation) All() []models.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}
