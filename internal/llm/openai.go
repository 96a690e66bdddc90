package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hyperjump/tanya/pkg/utils"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-70b-8192"
)

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAICompatible calls POST {BaseURL}/chat/completions with a system and a
// user message.
type OpenAICompatible struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

var _ Generator = (*OpenAICompatible)(nil)

// NewOpenAICompatible returns a generator for cfg. The API key is required.
func NewOpenAICompatible(cfg OpenAIConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" {
		return nil, goerr.New("missing API key for chat completions endpoint", goerr.V("base_url", cfg.BaseURL))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		// The caller's context bounds each request.
		cfg.HTTPClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &OpenAICompatible{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      cfg.HTTPClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate sends one completion request and returns the first choice.
func (o *OpenAICompatible) Generate(ctx context.Context, directive, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: directive},
			{Role: "user", Content: prompt},
		},
		Temperature: o.temperature,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode chat request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "chat request failed", goerr.V("model", o.model))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read chat response")
	}

	var out chatResponse
	decodeErr := json.Unmarshal(payload, &out)
	if resp.StatusCode >= 300 {
		msg := utils.Truncate(strings.TrimSpace(string(payload)), 200)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", goerr.New("chat request rejected: "+msg,
			goerr.V("status", resp.StatusCode),
			goerr.V("model", o.model))
	}
	if decodeErr != nil {
		return "", goerr.Wrap(decodeErr, "failed to decode chat response")
	}
	if len(out.Choices) == 0 {
		return "", goerr.New("chat response has no choices", goerr.V("model", o.model))
	}
	return out.Choices[0].Message.Content, nil
}
