package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

// crossLevelK is how many documents back each level's narrative.
const crossLevelK = 3

// CrossLevelAnalyzer walks a level range and reports how a topic
// manifests at each tier, then narrates the propagation between the
// range's endpoints.
type CrossLevelAnalyzer struct {
	retriever Retriever
	logger    *slog.Logger
}

// NewCrossLevelAnalyzer creates an analyzer over the given evidence
// source. A nil logger falls back to slog.Default().
func NewCrossLevelAnalyzer(retriever Retriever, logger *slog.Logger) *CrossLevelAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossLevelAnalyzer{retriever: retriever, logger: logger}
}

// Analyze produces one LevelAnalysisEntry per level in [start, end],
// ascending, plus a cascade summary. The report always carries exactly
// end-start+1 entries: a level with no evidence appears with an empty
// supporting set and a "no direct evidence" summary, never skipped.
//
// Returns ErrInvalidRange when start > end and level.ErrInvalidLevel
// when either bound is outside the hierarchy, before any query runs.
func (a *CrossLevelAnalyzer) Analyze(ctx context.Context, query string, start, end level.Level) (*CrossLevelReport, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("%w: start level %d above end level %d", ErrInvalidRange, start, end)
	}

	entries := make([]LevelAnalysisEntry, 0, int(end-start)+1)
	for l := start; l <= end; l++ {
		perLevel, err := a.retriever.Retrieve(ctx, query, []level.Level{l}, retrieval.StrategyBasic, crossLevelK)
		if err != nil {
			return nil, fmt.Errorf("analyze level %d: %w", l, err)
		}
		docs := perLevel[l]
		entries = append(entries, LevelAnalysisEntry{
			Level:      l,
			Summary:    summarize(keyInsights(docs)),
			Supporting: docs,
		})
		a.logger.Debug("level analyzed", "level", int(l), "documents", len(docs))
	}

	return &CrossLevelReport{
		Query:          query,
		Entries:        entries,
		CascadeSummary: cascadeSummary(entries, start, end),
	}, nil
}

// cascadeSummary narrates bottom-up impact and top-down influence
// across the analyzed range, using only the presence or absence of
// evidence at each level.
func cascadeSummary(entries []LevelAnalysisEntry, start, end level.Level) string {
	if start == end {
		return fmt.Sprintf("Single-level analysis at %s; no cross-level propagation to report.", start)
	}

	withEvidence := make([]string, 0, len(entries))
	without := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e.Supporting) > 0 {
			withEvidence = append(withEvidence, e.Level.Name())
		} else {
			without = append(without, e.Level.Name())
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bottom-up impact (%s to %s): conditions at the %s level propagate upward through ",
		start, end, start.Name())
	for l := start + 1; l <= end; l++ {
		if l > start+1 {
			b.WriteString(", ")
		}
		b.WriteString(l.Name())
	}
	b.WriteString(", shaping operational efficiency and decision-making at each tier. ")

	fmt.Fprintf(&b, "Top-down influence (%s to %s): decisions at the %s level steer resource allocation and priorities down through ",
		end, start, end.Name())
	for l := end - 1; l >= start; l-- {
		if l < end-1 {
			b.WriteString(", ")
		}
		b.WriteString(l.Name())
	}
	b.WriteString(". ")

	switch {
	case len(without) == 0:
		fmt.Fprintf(&b, "Evidence was found at every analyzed level (%s).", strings.Join(withEvidence, ", "))
	case len(withEvidence) == 0:
		b.WriteString("No direct evidence was found at any analyzed level; the propagation above is structural only.")
	default:
		fmt.Fprintf(&b, "Evidence supports the %s tier(s); no direct evidence was found at %s.",
			strings.Join(withEvidence, ", "), strings.Join(without, ", "))
	}
	return b.String()
}
