package embedding

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/hyperjump/tanya/pkg/utils"
)

// GeminiEmbedder embeds text with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string

	mu         sync.Mutex
	dimensions int
	requested  int
}

// NewGeminiEmbedder uses client with model (default gemini-embedding-001).
// A positive dimensions asks the model for vectors of that size.
func NewGeminiEmbedder(client *genai.Client, model string, dimensions int) *GeminiEmbedder {
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GeminiEmbedder{client: client, model: model, dimensions: dimensions, requested: dimensions}
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{}
	if g.requested > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(g.requested))
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.model))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embeddings count mismatch", goerr.V("want", len(texts)), goerr.V("got", len(resp.Embeddings)))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if g.dimensions == 0 {
			g.dimensions = len(e.Values)
		}
		if len(e.Values) != g.dimensions {
			return nil, goerr.New("embedding dimension changed", goerr.V("want", g.dimensions), goerr.V("got", len(e.Values)))
		}
		utils.NormalizeL2(e.Values)
		out[i] = e.Values
	}
	return out, nil
}

func (g *GeminiEmbedder) Dimensions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dimensions
}

func (g *GeminiEmbedder) Name() string {
	return "gemini/" + g.model
}

func (g *GeminiEmbedder) Close() error {
	return nil
}
