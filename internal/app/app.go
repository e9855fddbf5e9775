// Package app provides application initialization and dependency wiring.
//
// App is the container that owns the database pool, the embedder, the
// per-level document store, and the retrieval and analysis engine built
// on top of them. Setup builds everything in dependency order; Close
// releases it.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strataworks/strata/internal/analysis"
	"github.com/strataworks/strata/internal/collection"
	"github.com/strataworks/strata/internal/config"
	"github.com/strataworks/strata/internal/log"
	"github.com/strataworks/strata/internal/mcp"
	"github.com/strataworks/strata/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Engine
	Store       *collection.Store
	Registry    *collection.Registry
	Retriever   *retrieval.Retriever
	CrossLevel  *analysis.CrossLevelAnalyzer
	Integration *analysis.IntegrationAnalyzer
	Compliance  *analysis.ComplianceChecker
	MCPServer   *mcp.Server

	cancel context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Info("database pool closed")
	}
	return nil
}

func (a *App) logger() log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.NewNop()
}
