package config

import (
	"errors"
	"strings"
	"testing"
)

// validBaseConfig returns a Config with all required fields set for the
// given provider.
func validBaseConfig(provider string) *Config {
	cfg := &Config{
		Provider:           provider,
		EmbedderModel:      DefaultGeminiEmbedderModel,
		EmbeddingDimension: DefaultEmbeddingDimension,
		EmbedBatchSize:     DefaultEmbedBatchSize,
		EmbedMaxRetries:    DefaultEmbedMaxRetries,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "mnemos",
		PostgresPassword:   "test_password",
		PostgresDBName:     "mnemos",
		PostgresSSLMode:    "disable",
		SemanticWeight:     0.7,
		LexicalWeight:      0.3,
		MinSimilarity:      0.3,
		SearchTimeoutS:     10,
		MaxDocuments:       DefaultMaxDocuments,
		MaxQueriesPerMonth: DefaultMaxQueriesPerMonth,
		MaxDomains:         DefaultMaxDomains,
	}
	if provider == ProviderOpenAI {
		cfg.EmbedderModel = DefaultOpenAIEmbedderModel
		cfg.EmbeddingDimension = 1536
	}
	return cfg
}

// setEnvForProvider sets the required API key for the given provider.
func setEnvForProvider(t *testing.T, provider string) {
	t.Helper()
	switch provider {
	case ProviderOpenAI:
		t.Setenv("OPENAI_API_KEY", "test-openai-key")
	default:
		t.Setenv("GEMINI_API_KEY", "test-api-key")
	}
}

func TestValidateSuccess(t *testing.T) {
	for _, provider := range []string{ProviderGemini, ProviderOpenAI} {
		t.Run(provider, func(t *testing.T) {
			setEnvForProvider(t, provider)

			cfg := validBaseConfig(provider)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validBaseConfig(ProviderGemini)
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "cohere" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero dimension",
			mutate:  func(c *Config) { c.EmbeddingDimension = 0 },
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "oversized dimension",
			mutate:  func(c *Config) { c.EmbeddingDimension = 100000 },
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.EmbedBatchSize = 0 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "negative semantic weight",
			mutate:  func(c *Config) { c.SemanticWeight = -0.1 },
			wantErr: ErrInvalidWeights,
		},
		{
			name: "weights not summing to one",
			mutate: func(c *Config) {
				c.SemanticWeight = 0.7
				c.LexicalWeight = 0.7
			},
			wantErr: ErrInvalidWeights,
		},
		{
			name:    "min similarity above one",
			mutate:  func(c *Config) { c.MinSimilarity = 1.5 },
			wantErr: ErrInvalidWeights,
		},
		{
			name:    "zero document quota",
			mutate:  func(c *Config) { c.MaxDocuments = 0 },
			wantErr: ErrInvalidQuota,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvForProvider(t, ProviderGemini)

			cfg := validBaseConfig(ProviderGemini)
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty", "", ""},
		{"short fully masked", "hunter2", maskedValue},
		{"long keeps edges", "my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestConfigStringMasksPassword(t *testing.T) {
	cfg := validBaseConfig(ProviderGemini)
	cfg.PostgresPassword = "super_secret_password"

	s := cfg.String()
	if strings.Contains(s, "super_secret_password") {
		t.Errorf("String() leaked password: %s", s)
	}
	if !strings.Contains(s, maskedValue) {
		t.Errorf("String() should contain mask placeholder, got: %s", s)
	}
}
