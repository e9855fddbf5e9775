package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/strataworks/strata/internal/analysis"
	"github.com/strataworks/strata/internal/collection"
	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

// isCallerFault reports whether err is a validation failure the MCP
// client caused, as opposed to an engine or backend fault.
func isCallerFault(err error) bool {
	return errors.Is(err, level.ErrInvalidLevel) ||
		errors.Is(err, retrieval.ErrInvalidParameter) ||
		errors.Is(err, analysis.ErrInvalidRange) ||
		errors.Is(err, collection.ErrUnknownLevel)
}

// errorResult builds an IsError tool result for caller faults; protocol
// and backend errors propagate as Go errors instead.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// RetrieveInput is the input schema for the retrieve_documents tool.
type RetrieveInput struct {
	Query          string `json:"query" jsonschema:"The question or topic to search the knowledge base for"`
	RequesterLevel int    `json:"requester_level" jsonschema:"ISA-95 level of the requester (1=Field, 2=Supervisory, 3=Planning, 4=Management); results are limited to this level and below"`
	Strategy       string `json:"strategy,omitempty" jsonschema:"Retrieval strategy: basic, hierarchical, or comprehensive (default hierarchical)"`
	K              int    `json:"k,omitempty" jsonschema:"Documents per level (default from server config)"`
}

func (s *Server) registerRetrieve() error {
	inputSchema, err := jsonschema.For[RetrieveInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "retrieve_documents",
		Description: "Search the level-aware knowledge base. Access is closed downward: a requester at level N sees documents from levels 1..N only. Returns a ranked document list.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in RetrieveInput) (*mcp.CallToolResult, any, error) {
		strategy := retrieval.StrategyHierarchical
		if in.Strategy != "" {
			parsed, err := retrieval.ParseStrategy(in.Strategy)
			if err != nil {
				return errorResult(err), nil, nil
			}
			strategy = parsed
		}
		k := in.K
		if k == 0 {
			k = s.topK
		}

		accessible, err := level.Accessible(level.Level(in.RequesterLevel))
		if err != nil {
			return errorResult(err), nil, nil
		}

		perLevel, err := s.deps.Retriever.Retrieve(ctx, in.Query, accessible, strategy, k)
		var partial *retrieval.PartialFailureError
		switch {
		case err == nil:
		case errors.As(err, &partial) && len(perLevel) > 0:
			// Some levels survived; report them with a warning.
		case isCallerFault(err):
			return errorResult(err), nil, nil
		default:
			return nil, nil, err
		}

		ranked := perLevel[level.Level(in.RequesterLevel)]
		if strategy != retrieval.StrategyBasic {
			ranked = retrieval.Merge(perLevel, k)
		}
		return textResult(formatRetrieval(in.Query, strategy, ranked, partial)), nil, nil
	})
	return nil
}

// CrossLevelInput is the input schema for the cross_level_analysis tool.
type CrossLevelInput struct {
	Query      string `json:"query" jsonschema:"Topic to analyze across ISA-95 levels"`
	StartLevel int    `json:"start_level" jsonschema:"First level of the range (1-4)"`
	EndLevel   int    `json:"end_level" jsonschema:"Last level of the range (1-4, at or above start_level)"`
}

func (s *Server) registerCrossLevel() error {
	inputSchema, err := jsonschema.For[CrossLevelInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "cross_level_analysis",
		Description: "Analyze how a topic manifests at each ISA-95 level in a range and how effects cascade between levels. Use to understand how field issues impact higher levels or how management decisions reach the plant floor.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in CrossLevelInput) (*mcp.CallToolResult, any, error) {
		report, err := s.deps.CrossLevel.Analyze(ctx, in.Query, level.Level(in.StartLevel), level.Level(in.EndLevel))
		if err != nil {
			if isCallerFault(err) {
				return errorResult(err), nil, nil
			}
			return nil, nil, err
		}
		return textResult(formatCrossLevel(report)), nil, nil
	})
	return nil
}

// IntegrationInput is the input schema for the integration_points tool.
type IntegrationInput struct {
	Domain      string `json:"domain" jsonschema:"Domain context, e.g. production, quality, maintenance"`
	SourceLevel int    `json:"source_level" jsonschema:"ISA-95 level that sends information (1-4)"`
	TargetLevel int    `json:"target_level" jsonschema:"ISA-95 level that receives information (1-4, different from source)"`
}

func (s *Server) registerIntegration() error {
	inputSchema, err := jsonschema.For[IntegrationInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "integration_points",
		Description: "Derive the data-flow fields, protocols, and challenges for integrating two ISA-95 levels in a given domain. Use for planning system interfaces or troubleshooting cross-level communication.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in IntegrationInput) (*mcp.CallToolResult, any, error) {
		spec, err := s.deps.Integration.AnalyzeIntegration(ctx, in.Domain, level.Level(in.SourceLevel), level.Level(in.TargetLevel))
		if err != nil {
			if isCallerFault(err) {
				return errorResult(err), nil, nil
			}
			return nil, nil, err
		}
		return textResult(formatIntegration(spec)), nil, nil
	})
	return nil
}

// ComplianceInput is the input schema for the compliance_check tool.
type ComplianceInput struct {
	Topic       string `json:"topic" jsonschema:"Topic, process, or system to check coverage for"`
	FocusLevels []int  `json:"focus_levels,omitempty" jsonschema:"ISA-95 levels to check (default all four)"`
}

func (s *Server) registerCompliance() error {
	inputSchema, err := jsonschema.For[ComplianceInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "compliance_check",
		Description: "Check whether the knowledge base has qualifying evidence for a topic at each focus level. Reports covered levels, gaps, and a compliant/incomplete verdict.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in ComplianceInput) (*mcp.CallToolResult, any, error) {
		focus := make([]level.Level, 0, len(in.FocusLevels))
		for _, l := range in.FocusLevels {
			focus = append(focus, level.Level(l))
		}
		if len(focus) == 0 {
			focus = level.All()
		}

		report, err := s.deps.Compliance.Check(ctx, in.Topic, focus)
		if err != nil {
			if isCallerFault(err) {
				return errorResult(err), nil, nil
			}
			return nil, nil, err
		}
		return textResult(formatCompliance(report)), nil, nil
	})
	return nil
}

// StoreInput is the input schema for the knowledge_store tool.
type StoreInput struct {
	Level    int               `json:"level" jsonschema:"ISA-95 level the document belongs to (1-4)"`
	ID       string            `json:"id" jsonschema:"Stable document identifier"`
	Content  string            `json:"content" jsonschema:"Document text to embed and store"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"Optional source metadata key-value pairs"`
}

func (s *Server) registerStore() error {
	inputSchema, err := jsonschema.For[StoreInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "knowledge_store",
		Description: "Store a document in exactly one level's collection. The content is embedded and becomes retrievable by requesters at that level and above.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in StoreInput) (*mcp.CallToolResult, any, error) {
		err := s.deps.Store.Add(ctx, level.Level(in.Level), collection.Document{
			ID:       in.ID,
			Content:  in.Content,
			Metadata: in.Metadata,
		})
		if err != nil {
			if isCallerFault(err) {
				return errorResult(err), nil, nil
			}
			return nil, nil, err
		}
		return textResult(fmt.Sprintf("Stored document %q at %s.", in.ID, level.Level(in.Level))), nil, nil
	})
	return nil
}

// StatsInput is the input schema for the collection_stats tool.
type StatsInput struct{}

func (s *Server) registerStats() error {
	inputSchema, err := jsonschema.For[StatsInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "collection_stats",
		Description: "Report the document count of every level's collection.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in StatsInput) (*mcp.CallToolResult, any, error) {
		counts := make(map[level.Level]int, len(level.All()))
		for _, l := range level.All() {
			count, err := s.deps.Store.Count(ctx, l)
			if err != nil {
				return nil, nil, fmt.Errorf("counting %s: %w", l, err)
			}
			counts[l] = count
		}
		return textResult(formatStats(counts)), nil, nil
	})
	return nil
}
