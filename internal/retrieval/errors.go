package retrieval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/strataworks/strata/internal/level"
)

// ErrInvalidParameter indicates a bad k, an unknown strategy name, or an
// empty level set. Raised before any collection is queried.
var ErrInvalidParameter = errors.New("invalid retrieval parameter")

// LevelFailure records one level whose collection query failed.
type LevelFailure struct {
	Level level.Level
	Err   error
}

// PartialFailureError reports levels whose queries failed during a
// multi-level retrieval. It distinguishes "level N unavailable" from
// "level N had no results": a failed level is absent from the result
// map AND listed here, while an empty level is present with zero
// documents.
//
// When Retrieve returns a non-nil result map alongside this error, the
// map holds the levels that succeeded; the caller decides whether to
// proceed with them or abort.
type PartialFailureError struct {
	Failures []LevelFailure
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	if len(e.Failures) == 0 {
		return "retrieval failed"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("level %d: %v", int(f.Level), f.Err)
	}
	return "retrieval failed for " + strings.Join(parts, "; ")
}

// Unwrap exposes the underlying per-level errors for errors.Is/As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// FailedLevels returns the levels that failed, ascending.
func (e *PartialFailureError) FailedLevels() []level.Level {
	levels := make([]level.Level, len(e.Failures))
	for i, f := range e.Failures {
		levels[i] = f.Level
	}
	return levels
}
