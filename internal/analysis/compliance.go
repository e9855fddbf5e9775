package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

const (
	// complianceK is how many documents are inspected per focus level.
	complianceK = 3

	// DefaultCoverageThreshold is the relevance score a document must
	// reach for its level to count as covered. Tunable through
	// WithCoverageThreshold.
	DefaultCoverageThreshold = 0.7
)

// ComplianceChecker validates that a topic has qualifying evidence at
// each focus level of the hierarchy.
type ComplianceChecker struct {
	retriever Retriever
	threshold float64
	logger    *slog.Logger
}

// ComplianceOption configures a ComplianceChecker.
type ComplianceOption func(*ComplianceChecker)

// WithCoverageThreshold replaces the default coverage threshold.
func WithCoverageThreshold(threshold float64) ComplianceOption {
	return func(c *ComplianceChecker) {
		c.threshold = threshold
	}
}

// NewComplianceChecker creates a checker with the default threshold.
// A nil logger falls back to slog.Default().
func NewComplianceChecker(retriever Retriever, logger *slog.Logger, opts ...ComplianceOption) *ComplianceChecker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &ComplianceChecker{
		retriever: retriever,
		threshold: DefaultCoverageThreshold,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check retrieves evidence for the topic at every focus level and
// reports coverage. A level is covered when at least one document
// scores at or above the threshold; gaps are the focus levels that did
// not. The verdict is compliant only when there are no gaps.
//
// An empty or invalid focus set fails with
// retrieval.ErrInvalidParameter or level.ErrInvalidLevel before any
// query runs. Focus levels are deduplicated and reported ascending.
func (c *ComplianceChecker) Check(ctx context.Context, topic string, focusLevels []level.Level) (*ComplianceReport, error) {
	if len(focusLevels) == 0 {
		return nil, fmt.Errorf("%w: focus level set is empty", retrieval.ErrInvalidParameter)
	}
	for _, l := range focusLevels {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}

	focus := slices.Clone(focusLevels)
	slices.Sort(focus)
	focus = slices.Compact(focus)

	covered := make([]level.Level, 0, len(focus))
	gaps := make([]level.Level, 0, len(focus))
	for _, l := range focus {
		perLevel, err := c.retriever.Retrieve(ctx, topic, []level.Level{l}, retrieval.StrategyBasic, complianceK)
		if err != nil {
			return nil, fmt.Errorf("check level %d: %w", l, err)
		}

		if c.levelCovered(perLevel[l]) {
			covered = append(covered, l)
		} else {
			gaps = append(gaps, l)
		}
	}

	verdict := VerdictCompliant
	if len(gaps) > 0 {
		verdict = VerdictIncomplete
	}
	c.logger.Debug("compliance checked",
		"topic", topic,
		"covered", len(covered),
		"gaps", len(gaps),
		"verdict", string(verdict))

	return &ComplianceReport{
		Topic:         topic,
		FocusLevels:   focus,
		CoveredLevels: covered,
		Gaps:          gaps,
		Verdict:       verdict,
	}, nil
}

func (c *ComplianceChecker) levelCovered(docs []retrieval.ScoredDocument) bool {
	for _, doc := range docs {
		if doc.Score >= c.threshold {
			return true
		}
	}
	return false
}
