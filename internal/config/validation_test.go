package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		ModelProvider:        ProviderOllama,
		ModelName:            "llama3.1",
		EmbeddingModel:       "nomic-embed-text",
		EmbeddingDim:         768,
		OllamaBaseURL:        "http://127.0.0.1:11434",
		OllamaTimeoutSeconds: 120,
		AppHost:              "0.0.0.0",
		AppPort:              8000,
		TopK:                 2,
		ChunkSize:            1024,
		ChunkOverlap:         20,
		DataDir:              "data",
		SystemPrompt:         DefaultSystemPrompt,
		CitationPrompt:       DefaultCitationPrompt,
		PostgresHost:         "localhost",
		PostgresPort:         5432,
		PostgresUser:         "lore",
		PostgresPassword:     "a_strong_password",
		PostgresDBName:       "lore",
		PostgresSSLMode:      "disable",
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()
	require.NoError(t, validConfig().Validate())
}

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()
	var c *Config
	assert.ErrorIs(t, c.Validate(), ErrConfigNil)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unsupported provider",
			mutate:  func(c *Config) { c.ModelProvider = "openai" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedding model",
			mutate:  func(c *Config) { c.EmbeddingModel = "" },
			wantErr: ErrInvalidEmbeddingModel,
		},
		{
			name:    "unsupported embedding dim",
			mutate:  func(c *Config) { c.EmbeddingDim = 100 },
			wantErr: ErrInvalidEmbeddingDim,
		},
		{
			name:    "relative ollama url",
			mutate:  func(c *Config) { c.OllamaBaseURL = "127.0.0.1:11434" },
			wantErr: ErrInvalidOllamaURL,
		},
		{
			name:    "non-http ollama url",
			mutate:  func(c *Config) { c.OllamaBaseURL = "ftp://host:21" },
			wantErr: ErrInvalidOllamaURL,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.OllamaTimeoutSeconds = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "timeout too large",
			mutate:  func(c *Config) { c.OllamaTimeoutSeconds = 7200 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.AppPort = 0 },
			wantErr: ErrInvalidAppPort,
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.AppPort = 70000 },
			wantErr: ErrInvalidAppPort,
		},
		{
			name:    "top_k zero",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top_k above max",
			mutate:  func(c *Config) { c.TopK = MaxTopK + 1 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not below size",
			mutate:  func(c *Config) { c.ChunkSize = 20; c.ChunkOverlap = 20 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrInvalidDataDir,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 0 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "empty password",
			mutate:  func(c *Config) { c.PostgresPassword = "" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestValidate_NonDefaultEmbeddingDimAllowed(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.EmbeddingDim = 1024 // supported width, just warns about the schema
	require.NoError(t, cfg.Validate())
}
