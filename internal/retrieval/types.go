package retrieval

import (
	"fmt"

	"github.com/strataworks/strata/internal/level"
)

// Strategy selects how accessible levels are queried and how scores are
// weighted. The set is closed; dispatch is a switch, not a hierarchy.
type Strategy string

const (
	// StrategyBasic queries only the requester's own level (the highest
	// accessible one). Fastest; no cross-level context.
	StrategyBasic Strategy = "basic"

	// StrategyHierarchical queries every accessible level and
	// down-weights scores from levels below the requester's own, so the
	// requester's tier dominates a merged ranking.
	StrategyHierarchical Strategy = "hierarchical"

	// StrategyComprehensive queries every accessible level with raw,
	// unweighted scores. Intended for exhaustive cross-level analysis
	// rather than a single ranked answer.
	StrategyComprehensive Strategy = "comprehensive"
)

// Valid reports whether s is one of the three defined strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyBasic, StrategyHierarchical, StrategyComprehensive:
		return true
	}
	return false
}

// ParseStrategy converts a strategy name to a Strategy.
// Returns ErrInvalidParameter for unknown names.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown strategy %q (want basic, hierarchical, or comprehensive)", ErrInvalidParameter, name)
	}
	return s, nil
}

// ScoredDocument is a single retrieval hit. It exists only for the
// duration of a request; collections are never mutated through it.
type ScoredDocument struct {
	ID       string
	Level    level.Level
	Excerpt  string
	Score    float64
	Metadata map[string]string
}

// WeightFunc maps (document level, requester level) to a score
// multiplier for the hierarchical strategy. The weighting policy is
// replaceable; LinearWeight is the default.
type WeightFunc func(docLevel, requester level.Level) float64

// LinearWeight is the default hierarchical weighting: level/requester.
// The requester's own level gets weight 1.0 and lower levels are
// down-weighted proportionally, so a document below the requester never
// outscores its unweighted self.
func LinearWeight(docLevel, requester level.Level) float64 {
	return float64(docLevel) / float64(requester)
}
