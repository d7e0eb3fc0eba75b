// Package app provides application initialization and dependency wiring.
//
// App is the container that orchestrates all components: Genkit, the
// database connection pool, the knowledge store and the RAG service.
// Setup builds everything in dependency order and Close releases it in
// reverse.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JPisOP007/jeevo/internal/config"
	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/loader"
	"github.com/JPisOP007/jeevo/internal/log"
	"github.com/JPisOP007/jeevo/internal/rag"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge *knowledge.Store
	Loader    *loader.Loader
	RAG       *rag.Service
	Indexer   *rag.Indexer

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
