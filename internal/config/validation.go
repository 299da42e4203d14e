package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid model provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbeddingModel indicates the embedding model is invalid.
	ErrInvalidEmbeddingModel = errors.New("invalid embedding model")

	// ErrInvalidEmbeddingDim indicates the embedding dimension is unsupported.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidOllamaURL indicates the Ollama base URL is invalid.
	ErrInvalidOllamaURL = errors.New("invalid Ollama base URL")

	// ErrInvalidTimeout indicates the Ollama request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidAppPort indicates the HTTP port is out of range.
	ErrInvalidAppPort = errors.New("invalid app port")

	// ErrInvalidTopK indicates the retrieval fan-out is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidChunking indicates the chunk size/overlap pair is invalid.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidDataDir indicates the data directory is not set.
	ErrInvalidDataDir = errors.New("invalid data directory")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultTopK is the retrieval fan-out used when TOP_K is unset.
	DefaultTopK = 2

	// MaxTopK bounds the retrieval fan-out to keep context windows sane.
	MaxTopK = 100

	// DefaultEmbeddingDim matches the vector(768) column in db/migrations
	// (nomic-embed-text output width).
	DefaultEmbeddingDim = 768
)

// supportedEmbeddingDims are the vector widths common Ollama embedding
// models produce. The migration schema pins one of them; a mismatch is
// caught here instead of as an opaque pgvector insert error.
var supportedEmbeddingDims = []int{384, 512, 768, 1024, 1536, 3072}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Model configuration
	if c.ModelProvider != ProviderOllama {
		return fmt.Errorf("%w: %q (only %q is supported)", ErrInvalidProvider, c.ModelProvider, ProviderOllama)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: MODEL cannot be empty", ErrInvalidModelName)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: EMBEDDING_MODEL cannot be empty", ErrInvalidEmbeddingModel)
	}
	if !slices.Contains(supportedEmbeddingDims, c.EmbeddingDim) {
		return fmt.Errorf("%w: %d, must be one of %v", ErrInvalidEmbeddingDim, c.EmbeddingDim, supportedEmbeddingDims)
	}
	if c.EmbeddingDim != DefaultEmbeddingDim {
		slog.Warn("EMBEDDING_DIM differs from the migration schema",
			"configured", c.EmbeddingDim,
			"schema", DefaultEmbeddingDim,
			"hint", "adjust db/migrations to match before indexing")
	}

	// 2. Ollama server
	u, err := url.Parse(c.OllamaBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidOllamaURL, c.OllamaBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidOllamaURL, u.Scheme)
	}
	if c.OllamaTimeoutSeconds < 1 || c.OllamaTimeoutSeconds > 3600 {
		return fmt.Errorf("%w: must be between 1 and 3600 seconds, got %d", ErrInvalidTimeout, c.OllamaTimeoutSeconds)
	}

	// 3. HTTP server
	if c.AppPort < 1 || c.AppPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidAppPort, c.AppPort)
	}

	// 4. Retrieval
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidTopK, MaxTopK, c.TopK)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size), chunk_size=%d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: DATA_DIR cannot be empty", ErrInvalidDataDir)
	}

	// 5. PostgreSQL
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "lore_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
