// Package llm adapts remote language models to a single-call Generator.
package llm

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hyperjump/tanya/internal/config"
)

// Generator produces one completion from a system directive and a user prompt.
// Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, directive, prompt string) (string, error)
}

// New builds the generator selected by cfg.Provider. API keys are read from
// the environment variable named by cfg.APIKeyEnv.
func New(ctx context.Context, cfg *config.GeneratorConfig) (Generator, error) {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	switch cfg.Provider {
	case "groq", "openai", "":
		return NewOpenAICompatible(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      apiKey,
			Model:       cfg.Model,
			Temperature: cfg.TemperatureOrDefault(),
		})
	case "gemini":
		client, err := NewGenAIClient(ctx, apiKey, cfg.Project, cfg.Location)
		if err != nil {
			return nil, err
		}
		return NewGemini(client, cfg.Model, cfg.TemperatureOrDefault()), nil
	default:
		return nil, goerr.New("unknown generator provider", goerr.V("provider", cfg.Provider))
	}
}
