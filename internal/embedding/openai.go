package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hyperjump/tanya/pkg/utils"
)

// OpenAIConfig configures an OpenAI-compatible /embeddings endpoint.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int // 0 keeps the model's native size
	HTTPClient *http.Client
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API. Requests are not retried.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	mu         sync.Mutex
	dimensions int
	requested  int
}

// NewOpenAIEmbedder validates cfg and returns an embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, goerr.New("missing API key for embeddings endpoint", goerr.V("base_url", cfg.BaseURL))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     cfg.HTTPClient,
		dimensions: cfg.Dimensions,
		requested:  cfg.Dimensions,
	}, nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch sends all texts in one request and returns unit-length vectors
// in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingsRequest{Model: e.model, Input: texts, Dimensions: e.requested})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode embeddings request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build embeddings request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "embeddings request failed", goerr.V("model", e.model))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read embeddings response")
	}
	if resp.StatusCode >= 300 {
		return nil, goerr.New("embeddings request rejected",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", utils.Truncate(string(payload), 200)))
	}

	var out embeddingsResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to decode embeddings response")
	}
	if len(out.Data) != len(texts) {
		return nil, goerr.New("embeddings count mismatch", goerr.V("want", len(texts)), goerr.V("got", len(out.Data)))
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	embs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if err := e.checkDimensions(len(d.Embedding)); err != nil {
			return nil, err
		}
		utils.NormalizeL2(d.Embedding)
		embs[i] = d.Embedding
	}
	return embs, nil
}

func (e *OpenAIEmbedder) checkDimensions(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
	}
	if n != e.dimensions {
		return goerr.New("embedding dimension changed", goerr.V("want", e.dimensions), goerr.V("got", n))
	}
	return nil
}

// Dimensions returns the configured size, or the size of the first vector returned.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

func (e *OpenAIEmbedder) Name() string {
	return "openai/" + e.model
}

func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
