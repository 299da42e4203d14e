// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (MODEL, OLLAMA_BASE_URL, TOP_K, ...)
//  2. Config file (./lore.yaml or ~/.lore/lore.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Model: Ollama chat model and embedding model selection
//   - Server: HTTP bind address (APP_HOST/APP_PORT)
//   - Retrieval: TOP_K fan-out, chunking parameters, data directory
//   - Prompts: system prompt and citation prompt templates
//   - Storage: PostgreSQL connection (see storage.go)
//
// Configuration is read once at process start and treated as immutable
// afterwards. Validation is fail-fast: Load returns sentinel errors that
// callers can check with errors.Is (see validation.go).
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

// Supported model providers. Only Ollama is wired; the key exists so a
// misconfigured provider fails loudly instead of silently falling back.
const (
	ProviderOllama = "ollama"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, tokens), update MarshalJSON.
type Config struct {
	// Model selection
	ModelProvider  string `mapstructure:"model_provider" json:"model_provider"`   // only "ollama"
	ModelName      string `mapstructure:"model" json:"model"`                     // chat model (e.g. "llama3.1")
	EmbeddingModel string `mapstructure:"embedding_model" json:"embedding_model"` // e.g. "nomic-embed-text"
	EmbeddingDim   int    `mapstructure:"embedding_dim" json:"embedding_dim"`     // vector width, must match schema

	// Ollama server
	OllamaBaseURL        string `mapstructure:"ollama_base_url" json:"ollama_base_url"`
	OllamaTimeoutSeconds int    `mapstructure:"ollama_request_timeout" json:"ollama_request_timeout"`

	// HTTP server bind address
	AppHost string `mapstructure:"app_host" json:"app_host"`
	AppPort int    `mapstructure:"app_port" json:"app_port"`

	// Retrieval
	TopK         int    `mapstructure:"top_k" json:"top_k"`
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`       // words per chunk
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"` // overlapping words between chunks
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`

	// Prompts
	SystemPrompt   string `mapstructure:"system_prompt" json:"system_prompt"`
	CitationPrompt string `mapstructure:"system_citation_prompt" json:"system_citation_prompt"`

	// Source node links (empty = no URLs on source nodes)
	FileServerURLPrefix string `mapstructure:"fileserver_url_prefix" json:"fileserver_url_prefix"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("lore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".lore"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults and environment",
			"config_name", "lore.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail-fast: an invalid configuration never leaves this function
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Model defaults
	v.SetDefault("model_provider", ProviderOllama)
	v.SetDefault("model", "llama3.1")
	v.SetDefault("embedding_model", "nomic-embed-text")
	v.SetDefault("embedding_dim", DefaultEmbeddingDim)

	// Ollama defaults
	v.SetDefault("ollama_base_url", "http://127.0.0.1:11434")
	v.SetDefault("ollama_request_timeout", 120)

	// Server defaults
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("app_port", 8000)

	// Retrieval defaults
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("chunk_size", 1024)
	v.SetDefault("chunk_overlap", 20)
	v.SetDefault("data_dir", "data")

	// Prompt defaults (see prompts.go)
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("system_citation_prompt", DefaultCitationPrompt)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "lore")
	v.SetDefault("postgres_password", "lore_dev_password")
	v.SetDefault("postgres_db_name", "lore")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly.
// The env surface is the flat uppercase key set from the project's .env
// contract; explicit binding keeps it visible in one place instead of
// relying on AutomaticEnv's implicit mapping.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_provider", "MODEL_PROVIDER")
	mustBind("model", "MODEL")
	mustBind("embedding_model", "EMBEDDING_MODEL")
	mustBind("embedding_dim", "EMBEDDING_DIM")
	mustBind("ollama_base_url", "OLLAMA_BASE_URL")
	mustBind("ollama_request_timeout", "OLLAMA_REQUEST_TIMEOUT")
	mustBind("app_host", "APP_HOST")
	mustBind("app_port", "APP_PORT")
	mustBind("top_k", "TOP_K")
	mustBind("chunk_size", "CHUNK_SIZE")
	mustBind("chunk_overlap", "CHUNK_OVERLAP")
	mustBind("data_dir", "DATA_DIR")
	mustBind("system_prompt", "SYSTEM_PROMPT")
	mustBind("system_citation_prompt", "SYSTEM_CITATION_PROMPT")
	mustBind("fileserver_url_prefix", "FILESERVER_URL_PREFIX")

	mustBind("postgres_host", "POSTGRES_HOST")
	mustBind("postgres_port", "POSTGRES_PORT")
	mustBind("postgres_user", "POSTGRES_USER")
	mustBind("postgres_password", "POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "POSTGRES_SSL_MODE")

	// NOTE: DATABASE_URL is read directly in parseDatabaseURL, not via Viper.
}

// RequestTimeout returns the Ollama request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.OllamaTimeoutSeconds) * time.Second
}

// ServerAddr returns the host:port the HTTP server binds to.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.AppHost, c.AppPort)
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real secret characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets show the
// first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
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
