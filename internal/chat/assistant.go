// Package chat answers questions from the knowledge base and the running
// conversation.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/memory"
	"github.com/hyperjump/tanya/internal/models"
)

// FailurePrefix starts the answer text when the generator fails.
const FailurePrefix = "API Error: "

// Retriever returns the passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) []string
}

// Scorer rates how close an answer is to the context it was given.
type Scorer interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Assistant runs one conversation against one knowledge base. Turns are
// processed one at a time.
type Assistant struct {
	store     Retriever
	mem       *memory.Conversation
	gen       llm.Generator
	scorer    Scorer
	directive string
	topK      int
	window    int
	logger    *zap.Logger

	mu sync.Mutex
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithDirective sets the system directive sent with every prompt.
func WithDirective(d string) Option {
	return func(a *Assistant) {
		if strings.TrimSpace(d) != "" {
			a.directive = d
		}
	}
}

// WithTopK sets how many passages are retrieved per question.
func WithTopK(k int) Option {
	return func(a *Assistant) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithHistoryWindow sets how many recent turns are replayed in the prompt.
func WithHistoryWindow(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssistant wires a retriever, a conversation, a generator and a scorer.
// Defaults: one passage, eight turns, the default directive.
func NewAssistant(store Retriever, mem *memory.Conversation, gen llm.Generator, scorer Scorer, opts ...Option) *Assistant {
	a := &Assistant{
		store:     store,
		mem:       mem,
		gen:       gen,
		scorer:    scorer,
		directive: config.DefaultDirective,
		topK:      1,
		window:    memory.DefaultWindow,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Memory returns the conversation the assistant appends to.
func (a *Assistant) Memory() *memory.Conversation {
	return a.mem
}

// Answer retrieves context for query, asks the generator and records the
// turn. A generator failure is reported in the answer text with a zero score,
// and the conversation is left unchanged.
func (a *Assistant) Answer(ctx context.Context, query string) models.Answer {
	a.mu.Lock()
	defer a.mu.Unlock()

	history := a.mem.Recent(a.window)
	passages := a.store.Retrieve(ctx, query, a.topK)
	contextText := strings.Join(passages, "\n\n")
	prompt := buildPrompt(history, contextText, query)

	text, err := a.gen.Generate(ctx, a.directive, prompt)
	if err != nil {
		a.logger.Warn("Generation failed", zap.Error(err))
		return models.Answer{
			Text:       FailurePrefix + err.Error(),
			MemorySize: a.mem.Size(),
			Context:    passages,
			Failed:     true,
		}
	}

	a.mem.Append(query, text)
	score, err := a.scorer.Similarity(ctx, text, contextText)
	if err != nil {
		a.logger.Warn("Scoring failed", zap.Error(err))
		score = 0
	}
	a.logger.Debug("Answered",
		zap.Int("passages", len(passages)),
		zap.Int("history", len(history)),
		zap.Float64("score", score))
	return models.Answer{
		Text:       text,
		Score:      score,
		MemorySize: a.mem.Size(),
		Context:    passages,
	}
}

// buildPrompt renders past turns, the retrieved context and the question in
// the layout the directive refers to.
func buildPrompt(history []models.Turn, contextText, query string) string {
	var past strings.Builder
	for i, t := range history {
		if i > 0 {
			past.WriteString("\n")
		}
		fmt.Fprintf(&past, "User: %s\nAssistant: %s", t.Input, t.Output)
	}
	return fmt.Sprintf("Past Chat: %s\nDB Context: %s\n\nQuestion: %s", past.String(), contextText, query)
}
