// Package analysis builds structured cross-level views on top of the
// retrieval layer: per-level narratives with cascade summaries,
// integration requirements between two levels, and coverage checks
// against the four-level hierarchy.
//
// Every analyzer consumes evidence through the Retriever seam and never
// writes to the underlying collections.
package analysis

import (
	"context"

	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

// Retriever is the evidence source the analyzers depend on.
// *retrieval.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, accessible []level.Level, strategy retrieval.Strategy, k int) (map[level.Level][]retrieval.ScoredDocument, error)
}

// LevelAnalysisEntry summarizes one level's evidence for a query.
type LevelAnalysisEntry struct {
	Level      level.Level
	Summary    string
	Supporting []retrieval.ScoredDocument
}

// CrossLevelReport is the result of a cross-level analysis: one entry
// per level in the requested range, ascending, plus a narrative of how
// effects propagate between the range's endpoints.
type CrossLevelReport struct {
	Query          string
	Entries        []LevelAnalysisEntry
	CascadeSummary string
}

// FlowDirection classifies an integration pair by which way the data
// moves through the hierarchy.
type FlowDirection string

const (
	FlowUpward   FlowDirection = "upward"
	FlowDownward FlowDirection = "downward"
)

// IntegrationPattern describes the typical exchange between a pair of
// levels.
type IntegrationPattern struct {
	DataFlow   string
	Protocols  string
	Challenges string
}

// IntegrationSpec is the derived integration requirement between a
// source and a target level for one domain.
type IntegrationSpec struct {
	SourceLevel     level.Level
	TargetLevel     level.Level
	Domain          string
	Direction       FlowDirection
	RequiredFields  []string
	Rationale       string
	Pattern         IntegrationPattern
	Recommendations []string
}

// Verdict is the outcome of a compliance check.
type Verdict string

const (
	VerdictCompliant  Verdict = "compliant"
	VerdictIncomplete Verdict = "incomplete"
)

// ComplianceReport lists which focus levels had qualifying evidence for
// a topic and which did not.
type ComplianceReport struct {
	Topic         string
	FocusLevels   []level.Level
	CoveredLevels []level.Level
	Gaps          []level.Level
	Verdict       Verdict
}
