package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-embedding-001"

// GeminiProvider generates embeddings through the Gemini API backend.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}

	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, Fatal(fmt.Errorf("provider returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for i, item := range resp.Embeddings {
		if item == nil || len(item.Values) == 0 {
			return nil, Fatal(fmt.Errorf("provider response is missing an embedding for input %d", i))
		}
		vectors[i] = item.Values
	}

	return vectors, nil
}

func (p *GeminiProvider) Model() string {
	return p.model
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return Transient(err)
		default:
			return Fatal(err)
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "timeout", "temporarily unavailable", "connection reset", "connection refused", "eof"} {
		if strings.Contains(msg, marker) {
			return Transient(err)
		}
	}

	return Fatal(err)
}
