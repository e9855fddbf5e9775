package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/strataworks/strata/internal/level"
)

// stubCollection is a Collection returning canned results.
type stubCollection struct {
	results []Result
	err     error
	calls   int
}

func (s *stubCollection) Query(ctx context.Context, text string, k int) ([]Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestRegistry_HandleFor(t *testing.T) {
	fieldColl := &stubCollection{}
	planningColl := &stubCollection{}

	registry := NewRegistry(map[level.Level]Collection{
		level.Field:    fieldColl,
		level.Planning: planningColl,
	})

	got, err := registry.HandleFor(level.Field)
	if err != nil {
		t.Fatalf("HandleFor(Field) failed: %v", err)
	}
	if got != fieldColl {
		t.Error("HandleFor(Field) returned wrong collection")
	}

	got, err = registry.HandleFor(level.Planning)
	if err != nil {
		t.Fatalf("HandleFor(Planning) failed: %v", err)
	}
	if got != planningColl {
		t.Error("HandleFor(Planning) returned wrong collection")
	}
}

func TestRegistry_HandleFor_UnknownLevel(t *testing.T) {
	registry := NewRegistry(map[level.Level]Collection{
		level.Field: &stubCollection{},
	})

	_, err := registry.HandleFor(level.Management)
	if err == nil {
		t.Fatal("expected error for unconfigured level")
	}
	if !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got: %v", err)
	}
}

func TestRegistry_Levels(t *testing.T) {
	registry := NewRegistry(map[level.Level]Collection{
		level.Management:  &stubCollection{},
		level.Field:       &stubCollection{},
		level.Supervisory: &stubCollection{},
	})

	levels := registry.Levels()
	want := []level.Level{level.Field, level.Supervisory, level.Management}
	if len(levels) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(levels))
	}
	for i, l := range levels {
		if l != want[i] {
			t.Errorf("Levels()[%d] = %d, want %d (must be ascending)", i, l, want[i])
		}
	}
}

// TestRegistry_Immutable verifies that mutating the constructor argument
// after the fact does not change the registry.
func TestRegistry_Immutable(t *testing.T) {
	m := map[level.Level]Collection{
		level.Field: &stubCollection{},
	}
	registry := NewRegistry(m)

	m[level.Management] = &stubCollection{}
	delete(m, level.Field)

	if _, err := registry.HandleFor(level.Field); err != nil {
		t.Errorf("Field collection lost after argument mutation: %v", err)
	}
	if _, err := registry.HandleFor(level.Management); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Management collection leaked into registry: %v", err)
	}
}
