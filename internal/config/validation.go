package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation and API key presence
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required",
				ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: %s, %s",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOpenAI)
	}

	// 2. Embedding configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The schema's vector column is provisioned for a fixed dimension;
	// production models output 768, 1536, or 3072.
	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d",
			ErrInvalidDimension, c.EmbeddingDimension)
	}

	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d",
			ErrInvalidBatchSize, c.EmbedBatchSize)
	}

	if c.EmbedMaxRetries < 0 || c.EmbedMaxRetries > 10 {
		return fmt.Errorf("%w: embed_max_retries must be between 0 and 10, got %d",
			ErrInvalidBatchSize, c.EmbedMaxRetries)
	}

	// 3. Hybrid ranking weights: each in [0,1], summing to 1.
	if c.SemanticWeight < 0 || c.SemanticWeight > 1 {
		return fmt.Errorf("%w: semantic_weight must be in [0,1], got %.2f",
			ErrInvalidWeights, c.SemanticWeight)
	}
	if c.LexicalWeight < 0 || c.LexicalWeight > 1 {
		return fmt.Errorf("%w: lexical_weight must be in [0,1], got %.2f",
			ErrInvalidWeights, c.LexicalWeight)
	}
	if math.Abs(c.SemanticWeight+c.LexicalWeight-1.0) > 1e-9 {
		return fmt.Errorf("%w: semantic_weight + lexical_weight must equal 1.0, got %.2f",
			ErrInvalidWeights, c.SemanticWeight+c.LexicalWeight)
	}

	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be in [0,1], got %.2f",
			ErrInvalidWeights, c.MinSimilarity)
	}

	// 4. Quota ceilings
	if c.MaxDocuments < 1 {
		return fmt.Errorf("%w: max_documents must be positive, got %d",
			ErrInvalidQuota, c.MaxDocuments)
	}
	if c.MaxQueriesPerMonth < 1 {
		return fmt.Errorf("%w: max_queries_per_month must be positive, got %d",
			ErrInvalidQuota, c.MaxQueriesPerMonth)
	}
	if c.MaxDomains < 1 {
		return fmt.Errorf("%w: max_domains must be positive, got %d",
			ErrInvalidQuota, c.MaxDomains)
	}

	// 5. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "mnemos_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
