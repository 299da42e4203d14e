// Package app wires the application together: configuration, database
// pool, Genkit with the Ollama plugin, knowledge store, retriever and the
// chat engine.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekit/lore/internal/config"
	"github.com/lorekit/lore/internal/document"
	"github.com/lorekit/lore/internal/knowledge"
	"github.com/lorekit/lore/internal/log"
	"github.com/lorekit/lore/internal/rag"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Model     ai.Model
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Retriever ai.Retriever
	Engine    *rag.Engine
	Loader    *document.Loader
}

// Close releases all held resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return nil
}
