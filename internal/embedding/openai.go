package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds text through the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIProvider creates a provider for the given embedding model.
// dim is passed to the API so models supporting variable output
// (text-embedding-3-*) emit exactly the store's dimension.
func NewOpenAIProvider(apiKey, model string, dim int) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai/" + p.model }

// Embed implements Provider. Results are reordered by the API's Index
// field, so the returned slice is positionally aligned with texts even
// if the response arrives out of order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dim,
	})
	if err != nil {
		// go-openai does not expose the Retry-After header, so the
		// client falls back to its own backoff schedule.
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, &RateLimitError{Provider: p.Name(), Err: err}
		}
		if looksRateLimited(err) {
			return nil, &RateLimitError{Provider: p.Name(), Err: err}
		}
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	if len(resp.Data) != len(texts) {
		return nil, &ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("returned %d embeddings for %d inputs", len(resp.Data), len(texts)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, &ProviderError{
				Provider: p.Name(),
				Err:      fmt.Errorf("embedding index %d out of range for %d inputs", item.Index, len(texts)),
			}
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
