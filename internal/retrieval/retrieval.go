// Package retrieval implements access-scoped retrieval over the
// per-level document collections and the score-weighted merge that
// turns per-level results into a single ranked answer set.
//
// Three strategies exist: basic queries only the requester's own level;
// hierarchical queries every accessible level with level-weighted
// scores; comprehensive queries every accessible level unweighted. The
// multi-level strategies fan out one read-only query per level and join
// before any merging happens — per-level queries share no mutable
// state, so no locking is needed.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/strataworks/strata/internal/collection"
	"github.com/strataworks/strata/internal/level"
)

// Retriever executes retrieval strategies against the collection
// registry. Safe for concurrent use.
type Retriever struct {
	registry *collection.Registry
	weight   WeightFunc
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithWeightFunc replaces the hierarchical weighting policy.
// The default is LinearWeight.
func WithWeightFunc(fn WeightFunc) Option {
	return func(r *Retriever) {
		if fn != nil {
			r.weight = fn
		}
	}
}

// New creates a Retriever over the given registry.
// A nil logger falls back to slog.Default().
func New(registry *collection.Registry, logger *slog.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{
		registry: registry,
		weight:   LinearWeight,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve queries the accessible levels according to the strategy and
// returns top-k scored documents per level, each level's slice sorted
// by score descending (document ID breaks ties).
//
// Validation failures (bad k, unknown strategy, empty or invalid level
// set) are reported before any collection is touched. For the
// multi-level strategies, per-level queries run concurrently; a level
// whose query fails is reported through *PartialFailureError while the
// remaining levels' results are still returned. If ctx is canceled the
// whole request fails with ctx's error and no partial results are
// returned.
func (r *Retriever) Retrieve(ctx context.Context, query string, accessible []level.Level, strategy Strategy, k int) (map[level.Level][]ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be a positive integer, got %d", ErrInvalidParameter, k)
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown strategy %q (want basic, hierarchical, or comprehensive)", ErrInvalidParameter, strategy)
	}
	if len(accessible) == 0 {
		return nil, fmt.Errorf("%w: accessible level set is empty", ErrInvalidParameter)
	}
	for _, l := range accessible {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}

	requester, _ := level.Highest(accessible)

	if strategy == StrategyBasic {
		// Basic targets only the requester's own tier: a single query,
		// no weighting, no merge needed downstream.
		docs, err := r.queryLevel(ctx, query, requester, k)
		if err != nil {
			return nil, err
		}
		return map[level.Level][]ScoredDocument{requester: docs}, nil
	}

	return r.fanOut(ctx, query, accessible, requester, strategy, k)
}

// fanOut queries every accessible level concurrently and joins before
// returning. Each goroutine writes to its own slot; the join barrier is
// the only synchronization point.
func (r *Retriever) fanOut(ctx context.Context, query string, levels []level.Level, requester level.Level, strategy Strategy, k int) (map[level.Level][]ScoredDocument, error) {
	type levelResult struct {
		level level.Level
		docs  []ScoredDocument
		err   error
	}

	results := make([]levelResult, len(levels))
	var wg sync.WaitGroup
	for i, l := range levels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs, err := r.queryLevel(ctx, query, l, k)
			results[i] = levelResult{level: l, docs: docs, err: err}
		}()
	}
	wg.Wait()

	// Cancellation fails the request atomically: abandoned in-flight
	// queries must not surface as a partial result set.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perLevel := make(map[level.Level][]ScoredDocument, len(levels))
	var failures []LevelFailure
	for _, res := range results {
		if res.err != nil {
			r.logger.Warn("level query failed", "level", int(res.level), "error", res.err)
			failures = append(failures, LevelFailure{Level: res.level, Err: res.err})
			continue
		}

		docs := res.docs
		if strategy == StrategyHierarchical {
			w := r.weight(res.level, requester)
			weighted := make([]ScoredDocument, len(docs))
			for j, doc := range docs {
				doc.Score *= w
				weighted[j] = doc
			}
			docs = weighted
		}
		perLevel[res.level] = docs
	}

	if len(failures) > 0 {
		slices.SortFunc(failures, func(a, b LevelFailure) int {
			return int(a.Level) - int(b.Level)
		})
		pfErr := &PartialFailureError{Failures: failures}
		if len(perLevel) == 0 {
			return nil, pfErr
		}
		return perLevel, pfErr
	}
	return perLevel, nil
}

// queryLevel issues one read-only query against a single level's
// collection and normalizes the result ordering. The collaborator makes
// no ordering guarantee, so results are re-sorted here.
func (r *Retriever) queryLevel(ctx context.Context, query string, l level.Level, k int) ([]ScoredDocument, error) {
	coll, err := r.registry.HandleFor(l)
	if err != nil {
		return nil, err
	}

	hits, err := coll.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}

	docs := make([]ScoredDocument, len(hits))
	for i, hit := range hits {
		docs[i] = ScoredDocument{
			ID:       hit.ID,
			Level:    l,
			Excerpt:  hit.Excerpt,
			Score:    hit.Score,
			Metadata: hit.Metadata,
		}
	}
	sortDocs(docs)
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// sortDocs orders documents by score descending, then document ID
// ascending for determinism.
func sortDocs(docs []ScoredDocument) {
	slices.SortStableFunc(docs, func(a, b ScoredDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
