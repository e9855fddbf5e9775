package analysis

import "errors"

// ErrInvalidRange indicates a malformed level range: start above end
// for a cross-level analysis, or an equal source/target pair for an
// integration analysis. Raised before any collection is queried.
var ErrInvalidRange = errors.New("invalid level range")
