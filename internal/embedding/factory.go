package embedding

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hyperjump/tanya/internal/config"
)

// New builds the embedder selected by cfg.Provider and wraps it in an LRU
// cache when cfg.CacheSize is positive. An ONNX model that cannot be loaded
// falls back to the hash embedder so ingestion and chat keep working offline.
func New(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		emb Embedder
		err error
	)
	switch cfg.Provider {
	case "onnx", "":
		emb, err = NewONNXEmbedder(ONNXConfig{ModelPath: cfg.ModelPath, Dimensions: cfg.Dimensions, MaxTokens: cfg.MaxTokens})
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using hash embedder",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err))
			emb, err = NewHashEmbedder(cfg.Dimensions), nil
		}
	case "hash":
		emb = NewHashEmbedder(cfg.Dimensions)
	case "openai":
		emb, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "gemini":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("gemini embeddings: environment variable %s is empty", cfg.APIKeyEnv)
		}
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI})
		if err == nil {
			emb = NewGeminiEmbedder(client, cfg.Model, cfg.Dimensions)
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: onnx, openai, gemini, hash)", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}
	if cfg.CacheSize > 0 {
		emb = NewCachedEmbedder(emb, cfg.CacheSize)
	}
	return emb, nil
}
