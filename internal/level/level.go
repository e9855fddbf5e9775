// Package level defines the ISA-95 automation hierarchy levels and the
// access policy that scopes knowledge retrieval to a requester's tier.
//
// The four levels form a fixed, totally ordered enumeration:
//
//	1 Field & Control System
//	2 Supervisory
//	3 Planning
//	4 Management
//
// Access is closed downward: a requester at level L may read knowledge
// from levels 1 through L, never from above.
package level

import (
	"errors"
	"fmt"
)

// Level is an ISA-95 tier. Valid values are 1 through 4.
type Level int

// The four ISA-95 levels.
const (
	Field       Level = 1 // real-time control, sensors, actuators
	Supervisory Level = 2 // SCADA, HMI, batch control
	Planning    Level = 3 // production scheduling, resource allocation
	Management  Level = 4 // business planning, KPIs, enterprise integration
)

// Min and Max bound the valid level range.
const (
	Min Level = Field
	Max Level = Management
)

// ErrInvalidLevel indicates a level outside the 1-4 range.
// Check with errors.Is().
var ErrInvalidLevel = errors.New("invalid ISA-95 level")

var names = map[Level]string{
	Field:       "Field & Control System",
	Supervisory: "Supervisory",
	Planning:    "Planning",
	Management:  "Management",
}

var descriptions = map[Level]string{
	Field:       "Real-time control, sensors, actuators, basic automation",
	Supervisory: "SCADA, HMI, batch control, recipe management",
	Planning:    "Production scheduling, resource allocation, workflow management",
	Management:  "Business planning, KPIs, enterprise integration, strategic decisions",
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= Min && l <= Max
}

// Name returns the human-readable ISA-95 name for the level,
// or "Unknown" for values outside 1-4.
func (l Level) Name() string {
	if name, ok := names[l]; ok {
		return name
	}
	return "Unknown"
}

// Description returns a short description of the level's concerns,
// used by analysis narratives.
func (l Level) Description() string {
	return descriptions[l]
}

// String implements fmt.Stringer.
func (l Level) String() string {
	return fmt.Sprintf("Level %d (%s)", int(l), l.Name())
}

// Validate returns ErrInvalidLevel (wrapped with the offending value)
// if l is outside the 1-4 range.
func (l Level) Validate() error {
	if !l.Valid() {
		return fmt.Errorf("%w: %d (must be 1-4)", ErrInvalidLevel, int(l))
	}
	return nil
}

// Accessible computes the access scope for a requester level: the
// contiguous set {1, ..., requester}, ordered ascending. The scope is
// always closed downward; a level never grants access above itself.
//
// Returns ErrInvalidLevel if requester is outside 1-4.
func Accessible(requester Level) ([]Level, error) {
	if err := requester.Validate(); err != nil {
		return nil, err
	}

	scope := make([]Level, 0, requester)
	for l := Min; l <= requester; l++ {
		scope = append(scope, l)
	}
	return scope, nil
}

// All returns every defined level in ascending order.
func All() []Level {
	return []Level{Field, Supervisory, Planning, Management}
}

// Highest returns the maximum level in levels.
// The second return is false when levels is empty.
func Highest(levels []Level) (Level, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	highest := levels[0]
	for _, l := range levels[1:] {
		if l > highest {
			highest = l
		}
	}
	return highest, true
}
