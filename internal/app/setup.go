package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/strataworks/strata/db"
	"github.com/strataworks/strata/internal/analysis"
	"github.com/strataworks/strata/internal/collection"
	"github.com/strataworks/strata/internal/config"
	"github.com/strataworks/strata/internal/log"
	"github.com/strataworks/strata/internal/mcp"
	"github.com/strataworks/strata/internal/retrieval"
)

// Version is stamped by the build; the MCP handshake reports it.
var Version = "dev"

// Setup creates and initializes the application.
// Returns an App with embedded cleanup: call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.New(log.Config{})
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
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

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Store = collection.NewStore(
		collection.NewQueries(pool),
		embedder,
		logger.With("component", "store"),
	)
	a.Registry = a.Store.Registry()

	a.Retriever = retrieval.New(a.Registry, logger.With("component", "retrieval"))
	a.CrossLevel = analysis.NewCrossLevelAnalyzer(a.Retriever, logger.With("component", "crosslevel"))
	a.Integration = analysis.NewIntegrationAnalyzer(a.Retriever, logger.With("component", "integration"))
	a.Compliance = analysis.NewComplianceChecker(a.Retriever,
		logger.With("component", "compliance"),
		analysis.WithCoverageThreshold(cfg.CoverageThreshold),
	)

	server, err := mcp.NewServer(
		mcp.Config{Name: "strata", Version: Version, TopK: cfg.TopK},
		mcp.Deps{
			Retriever:   a.Retriever,
			CrossLevel:  a.CrossLevel,
			Integration: a.Integration,
			Compliance:  a.Compliance,
			Store:       a.Store,
			Logger:      logger.With("component", "mcp"),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	a.MCPServer = server

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin.
// GEMINI_API_KEY is read by the plugin directly.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai plugin")
	}
	return g, nil
}

// provideEmbedder looks up the configured embedder from the plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideDBPool runs migrations and creates the PostgreSQL connection
// pool. Every connection registers the pgvector type so embedding
// parameters encode natively.
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
		return pgxvector.RegisterTypes(ctx, conn)
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
