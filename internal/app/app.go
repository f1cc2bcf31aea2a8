// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles all components: Genkit with the
// Ollama plugin, the PostgreSQL pool, the knowledge store, retriever,
// session store, ingestion pipeline, and the chat agent.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/knowledge"
	"github.com/docuchat/docuchat/internal/retriever"
	"github.com/docuchat/docuchat/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge *knowledge.Store
	Retriever *retriever.Retriever
	Sessions  *session.Store
	Ingestor  *ingest.Pipeline
	Agent     *chat.Agent
	Flow      *chat.Flow
}

// Close releases all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return nil
}

// ModelRef returns the provider-qualified model name for Genkit
// lookups, e.g. "ollama/llama3.1".
func ModelRef(modelName string) string {
	return "ollama/" + modelName
}
