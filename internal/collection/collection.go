// Package collection manages the per-level document collections backing
// the retrieval engine.
//
// Each ISA-95 level owns exactly one collection. The Registry maps a
// level to its collection handle and is immutable after startup; the
// retrieval engine only ever reads through it. The PostgreSQL + pgvector
// store in this package is one Collection implementation; the engine
// depends only on the Collection interface, so alternative backends can
// be swapped in without touching retrieval logic.
package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strataworks/strata/internal/level"
)

var (
	// ErrUnknownLevel indicates no collection is configured for the
	// requested level. This is a registry misconfiguration, distinct
	// from an invalid level value.
	ErrUnknownLevel = errors.New("no collection configured for level")

	// ErrUnavailable indicates a collection query failed at the I/O
	// boundary. Callers distinguish this from an empty result set.
	ErrUnavailable = errors.New("collection unavailable")
)

// Result is a single similarity match returned by a collection query.
// Scores are raw cosine similarities from the backend; the retrieval
// engine applies any level weighting afterward.
type Result struct {
	ID        string
	Excerpt   string
	Score     float64
	Metadata  map[string]string
	CreatedAt time.Time
}

// Collection is the read-only query boundary consumed by the retrieval
// engine. Implementations issue one similarity search per call and make
// no ordering guarantee; the engine re-sorts.
type Collection interface {
	Query(ctx context.Context, text string, k int) ([]Result, error)
}

// Registry maps each ISA-95 level to its collection handle.
// The mapping is fixed at construction and safe for concurrent reads.
type Registry struct {
	collections map[level.Level]Collection
}

// NewRegistry builds a registry from the given level-to-collection
// mapping. The map is copied; later mutation of the argument does not
// affect the registry.
func NewRegistry(collections map[level.Level]Collection) *Registry {
	m := make(map[level.Level]Collection, len(collections))
	for l, c := range collections {
		m[l] = c
	}
	return &Registry{collections: m}
}

// HandleFor returns the collection configured for the given level.
// Returns ErrUnknownLevel if the level has no collection.
func (r *Registry) HandleFor(l level.Level) (Collection, error) {
	c, ok := r.collections[l]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, int(l))
	}
	return c, nil
}

// Levels returns the levels that have a configured collection,
// in ascending order.
func (r *Registry) Levels() []level.Level {
	var levels []level.Level
	for _, l := range level.All() {
		if _, ok := r.collections[l]; ok {
			levels = append(levels, l)
		}
	}
	return levels
}
