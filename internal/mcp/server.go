package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/strataworks/strata/internal/analysis"
	"github.com/strataworks/strata/internal/collection"
	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

// Retriever is the retrieval seam the server exposes over MCP.
// *retrieval.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, accessible []level.Level, strategy retrieval.Strategy, k int) (map[level.Level][]retrieval.ScoredDocument, error)
}

// CrossLevelAnalyzer runs range analyses across the hierarchy.
type CrossLevelAnalyzer interface {
	Analyze(ctx context.Context, query string, start, end level.Level) (*analysis.CrossLevelReport, error)
}

// IntegrationAnalyzer derives data-flow requirements between two levels.
type IntegrationAnalyzer interface {
	AnalyzeIntegration(ctx context.Context, domain string, source, target level.Level) (*analysis.IntegrationSpec, error)
}

// ComplianceChecker validates topic coverage across focus levels.
type ComplianceChecker interface {
	Check(ctx context.Context, topic string, focusLevels []level.Level) (*analysis.ComplianceReport, error)
}

// DocumentStore is the write and stats side of the per-level
// collections. *collection.Store satisfies it.
type DocumentStore interface {
	Add(ctx context.Context, l level.Level, doc collection.Document) error
	Count(ctx context.Context, l level.Level) (int, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string

	// TopK is the default document count per level when a tool call
	// does not specify its own.
	TopK int
}

// Deps are the engine components the server exposes as tools.
type Deps struct {
	Retriever   Retriever
	CrossLevel  CrossLevelAnalyzer
	Integration IntegrationAnalyzer
	Compliance  ComplianceChecker
	Store       DocumentStore
	Logger      *slog.Logger
}

// Server exposes the retrieval and analysis engine as MCP tools over a
// transport of the caller's choice (typically stdio).
type Server struct {
	mcpServer *mcp.Server
	deps      Deps
	topK      int
}

// NewServer creates an MCP server and registers all engine tools.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", cfg.TopK)
	}
	if deps.Retriever == nil || deps.CrossLevel == nil || deps.Integration == nil || deps.Compliance == nil || deps.Store == nil {
		return nil, fmt.Errorf("all engine dependencies are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		deps: deps,
		topK: cfg.TopK,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	registrations := []struct {
		name string
		fn   func() error
	}{
		{"retrieve_documents", s.registerRetrieve},
		{"cross_level_analysis", s.registerCrossLevel},
		{"integration_points", s.registerIntegration},
		{"compliance_check", s.registerCompliance},
		{"knowledge_store", s.registerStore},
		{"collection_stats", s.registerStats},
	}
	for _, r := range registrations {
		if err := r.fn(); err != nil {
			return fmt.Errorf("register %s: %w", r.name, err)
		}
	}
	return nil
}
