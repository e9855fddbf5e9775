package retrieval

import (
	"slices"

	"github.com/strataworks/strata/internal/level"
)

// Merge combines per-level results into a single ranked sequence.
//
// Documents are flattened across levels and sorted by score descending
// (post-weighting, when the hierarchical strategy produced the input).
// Ties break by ascending level number, then by document ID, so merging
// the same input twice always yields the same order. The output is
// truncated to limit when limit is positive; a non-positive limit keeps
// everything.
//
// Basic retrieval bypasses Merge: its single-level result is already a
// ranked sequence.
func Merge(perLevel map[level.Level][]ScoredDocument, limit int) []ScoredDocument {
	total := 0
	for _, docs := range perLevel {
		total += len(docs)
	}

	merged := make([]ScoredDocument, 0, total)
	for _, docs := range perLevel {
		merged = append(merged, docs...)
	}

	slices.SortStableFunc(merged, func(a, b ScoredDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if a.Level != b.Level {
			return int(a.Level) - int(b.Level)
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
