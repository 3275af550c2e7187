package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIProvider generates embeddings with the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		// The batcher owns retry and backoff.
		option.WithMaxRetries(0),
	)

	m := defaultOpenAIModel
	if model = strings.TrimSpace(model); model != "" {
		m = openai.EmbeddingModel(model)
	}

	return &OpenAIProvider{client: &client, model: m}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: p.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, Fatal(fmt.Errorf("embedding index %d out of range for %d inputs", idx, len(texts)))
		}

		vector := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vector[i] = float32(v)
		}
		vectors[idx] = vector
	}

	for i, vector := range vectors {
		if vector == nil {
			return nil, Fatal(fmt.Errorf("provider response is missing an embedding for input %d", i))
		}
	}

	return vectors, nil
}

func (p *OpenAIProvider) Model() string {
	return string(p.model)
}

func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return Transient(err)
		default:
			// Bad auth, malformed request, quota removal.
			return Fatal(err)
		}
	}

	// No API response at all: network-level failure.
	return Transient(err)
}
