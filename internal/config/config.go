// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.mnemos/config.yaml)
//  3. Default values
//
// Categories:
//   - Embedding: provider selection, model, dimension, batching/pacing
//   - Storage: PostgreSQL connection (see storage.go)
//   - Search: hybrid ranking weights and thresholds
//   - Quota: default per-user monthly ceilings
//
// Sensitive values (passwords, API keys) are masked in MarshalJSON and
// String; the config directory is created with 0750 permissions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the embedding provider is unsupported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidBatchSize indicates the embedding batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid embedding batch size")

	// ErrInvalidWeights indicates the hybrid ranking weights are invalid.
	ErrInvalidWeights = errors.New("invalid ranking weights")

	// ErrInvalidQuota indicates a quota ceiling is invalid.
	ErrInvalidQuota = errors.New("invalid quota ceiling")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs up to 3072 dimensions but supports
	// truncation via OutputDimensionality; the schema stores 768.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultOpenAIEmbedderModel is the default OpenAI embedder model.
	DefaultOpenAIEmbedderModel = "text-embedding-3-small"

	// DefaultEmbeddingDimension is the vector dimension the schema is
	// provisioned for. Changing it requires a full re-embedding pass.
	DefaultEmbeddingDimension = 768

	// DefaultEmbedBatchSize bounds how many texts go to the provider in
	// one request.
	DefaultEmbedBatchSize = 20

	// DefaultEmbedPacingDelay is the minimum gap between provider calls.
	DefaultEmbedPacingDelay = 500 * time.Millisecond

	// DefaultEmbedMaxRetries caps backoff retries on rate-limit errors.
	DefaultEmbedMaxRetries = 3
)

// Default per-user monthly quota ceilings (free tier). Per-user
// overrides come from the caller, not from this file.
const (
	DefaultMaxDocuments       = 500
	DefaultMaxQueriesPerMonth = 1000
	DefaultMaxDomains         = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// Embedding provider configuration
	Provider           string `mapstructure:"provider" json:"provider"` // "gemini" (default) or "openai"
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	EmbedBatchSize     int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	EmbedPacingMS      int    `mapstructure:"embed_pacing_ms" json:"embed_pacing_ms"`
	EmbedMaxRetries    int    `mapstructure:"embed_max_retries" json:"embed_max_retries"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Hybrid search configuration
	SemanticWeight float64 `mapstructure:"semantic_weight" json:"semantic_weight"`
	LexicalWeight  float64 `mapstructure:"lexical_weight" json:"lexical_weight"`
	MinSimilarity  float64 `mapstructure:"min_similarity" json:"min_similarity"`
	SearchTimeoutS int     `mapstructure:"search_timeout_s" json:"search_timeout_s"`

	// Default quota ceilings applied when a user has no explicit plan.
	MaxDocuments       int `mapstructure:"max_documents" json:"max_documents"`
	MaxQueriesPerMonth int `mapstructure:"max_queries_per_month" json:"max_queries_per_month"`
	MaxDomains         int `mapstructure:"max_domains" json:"max_domains"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".mnemos")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Embedding defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	viper.SetDefault("embed_batch_size", DefaultEmbedBatchSize)
	viper.SetDefault("embed_pacing_ms", int(DefaultEmbedPacingDelay/time.Millisecond))
	viper.SetDefault("embed_max_retries", DefaultEmbedMaxRetries)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "mnemos")
	viper.SetDefault("postgres_password", "mnemos_dev_password")
	viper.SetDefault("postgres_db_name", "mnemos")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Hybrid search defaults
	viper.SetDefault("semantic_weight", 0.7)
	viper.SetDefault("lexical_weight", 0.3)
	viper.SetDefault("min_similarity", 0.3)
	viper.SetDefault("search_timeout_s", 10)

	// Quota defaults
	viper.SetDefault("max_documents", DefaultMaxDocuments)
	viper.SetDefault("max_queries_per_month", DefaultMaxQueriesPerMonth)
	viper.SetDefault("max_domains", DefaultMaxDomains)
}

// bindEnvVariables binds environment overrides explicitly.
// Provider API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly
// by the provider SDKs, not through Viper; Validate checks presence
// based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "MNEMOS_PROVIDER")
	mustBind("embedder_model", "MNEMOS_EMBEDDER_MODEL")
	mustBind("embedding_dimension", "MNEMOS_EMBEDDING_DIMENSION")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 chars or
// fewer are fully masked to prevent substring matching; longer secrets
// keep the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// PacingDelay returns the embedding pacing delay as a duration.
func (c *Config) PacingDelay() time.Duration {
	return time.Duration(c.EmbedPacingMS) * time.Millisecond
}

// SearchTimeout returns the per-search timeout as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutS) * time.Second
}
