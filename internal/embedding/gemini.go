package embedding

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// GeminiProvider embeds text through the Google AI embedding models via
// Genkit. The GEMINI_API_KEY environment variable is read by the
// plugin itself.
type GeminiProvider struct {
	embedder ai.Embedder
	model    string
}

// NewGeminiProvider initializes Genkit with the Google AI plugin and
// resolves the embedder for model. The chosen model's output dimension
// must match the store's provisioned dimension; the Client validates
// every returned vector against it.
func NewGeminiProvider(ctx context.Context, model string) (*GeminiProvider, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	embedder := googlegenai.GoogleAIEmbedder(g, model)
	if embedder == nil {
		return nil, fmt.Errorf("resolving Google AI embedder %q", model)
	}

	return &GeminiProvider{embedder: embedder, model: model}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini/" + p.model }

// Embed implements Provider. Input order is preserved by the Genkit
// embedding API.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		// The Google AI SDK reports throttling as text, not a typed error.
		if looksRateLimited(err) {
			return nil, &RateLimitError{Provider: p.Name(), Err: err}
		}
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, &ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts)),
		}
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
