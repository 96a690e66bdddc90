package llm

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini generates with a Gemini model.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float64
}

var _ Generator = (*Gemini)(nil)

// NewGenAIClient creates a genai client. A project selects Vertex AI with
// application default credentials; otherwise apiKey is used against the
// Gemini API.
func NewGenAIClient(ctx context.Context, apiKey, project, location string) (*genai.Client, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if project != "" {
		if location == "" {
			location = "us-central1"
		}
		cc = &genai.ClientConfig{Project: project, Location: location, Backend: genai.BackendVertexAI}
	} else if apiKey == "" {
		return nil, goerr.New("gemini needs an API key or a project")
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	return client, nil
}

// NewGemini uses client with model (default gemini-2.5-flash).
func NewGemini(client *genai.Client, model string, temperature float64) *Gemini {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model, temperature: temperature}
}

func (g *Gemini) Generate(ctx context.Context, directive, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: directive}}},
		Temperature:       genai.Ptr(float32(g.temperature)),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", g.model))
	}
	text := resp.Text()
	if text == "" {
		return "", goerr.New("empty response from gemini", goerr.V("model", g.model))
	}
	return text, nil
}
