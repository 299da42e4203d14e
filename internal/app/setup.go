package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/lorekit/lore/db"
	"github.com/lorekit/lore/internal/config"
	"github.com/lorekit/lore/internal/document"
	"github.com/lorekit/lore/internal/knowledge"
	"github.com/lorekit/lore/internal/log"
	"github.com/lorekit/lore/internal/rag"
)

// documentRetrieverName is the Genkit registry name of the file retriever.
const documentRetrieverName = "documents"

// Setup initializes the full application. On failure everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, model, embedder, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Model = model
	a.Embedder = embedder

	a.Knowledge = knowledge.NewStore(knowledge.NewQueries(pool), embedder, logger)
	a.Retriever = rag.NewRetriever(a.Knowledge).DefineDocument(g, documentRetrieverName)

	a.Engine = rag.NewEngine(g, model, a.Retriever, rag.Config{
		SystemPrompt:   cfg.SystemPrompt,
		CitationPrompt: cfg.CitationPrompt,
		CondensePrompt: config.CondensePrompt(),
		TopK:           cfg.TopK,
		URLPrefix:      cfg.FileServerURLPrefix,
	}, logger)

	a.Loader = document.NewLoader(cfg.DataDir, cfg.ChunkSize, cfg.ChunkOverlap, logger)

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool. Every
// connection registers the pgvector types so vector parameters encode
// natively.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the Ollama plugin and registers
// the chat model and the embedder. Ollama has no auto-discovery, both
// must be defined explicitly.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Model, ai.Embedder, error) {
	ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaBaseURL}
	g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
	if g == nil {
		return nil, nil, nil, errors.New("initializing genkit with ollama provider")
	}

	model := ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
		Name: cfg.ModelName,
		Type: "chat",
	}, nil)

	embedder := ollamaPlugin.DefineEmbedder(g, cfg.OllamaBaseURL, cfg.EmbeddingModel, nil)
	if embedder == nil {
		return nil, nil, nil, fmt.Errorf("embedder %q not registered", cfg.EmbeddingModel)
	}

	logger.Info("initialized Genkit with ollama provider",
		"model", cfg.ModelName,
		"embedding_model", cfg.EmbeddingModel,
		"host", cfg.OllamaBaseURL)

	return g, model, embedder, nil
}
