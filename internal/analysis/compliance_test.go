package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

func TestComplianceCheck_GapsAndVerdict(t *testing.T) {
	stub := &stubRetriever{docs: map[level.Level][]retrieval.ScoredDocument{
		level.Supervisory: {evidence(level.Supervisory, "s1",
			"Batch manufacturing records follow the S88 recipe model.", 0.85)},
		level.Planning: {evidence(level.Planning, "p1",
			"Scheduling notes mention batches in passing.", 0.4)},
	}}
	c := NewComplianceChecker(stub, nil)

	report, err := c.Check(context.Background(), "batch manufacturing",
		[]level.Level{level.Supervisory, level.Planning})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if diff := cmp.Diff([]level.Level{level.Supervisory}, report.CoveredLevels); diff != "" {
		t.Errorf("CoveredLevels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]level.Level{level.Planning}, report.Gaps); diff != "" {
		t.Errorf("Gaps mismatch (-want +got):\n%s", diff)
	}
	if report.Verdict != VerdictIncomplete {
		t.Errorf("Verdict = %q, want incomplete", report.Verdict)
	}
}

func TestComplianceCheck_Compliant(t *testing.T) {
	stub := &stubRetriever{docs: map[level.Level][]retrieval.ScoredDocument{
		level.Field:       {evidence(level.Field, "f1", "Control narrative.", 0.9)},
		level.Supervisory: {evidence(level.Supervisory, "s1", "HMI standard.", 0.71)},
	}}
	c := NewComplianceChecker(stub, nil)

	report, err := c.Check(context.Background(), "alarm management",
		[]level.Level{level.Field, level.Supervisory})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Verdict != VerdictCompliant {
		t.Errorf("Verdict = %q, want compliant", report.Verdict)
	}
	if len(report.Gaps) != 0 {
		t.Errorf("Gaps = %v, want none", report.Gaps)
	}
}

func TestComplianceCheck_ThresholdBoundary(t *testing.T) {
	// A score exactly at the threshold counts as covered.
	stub := &stubRetriever{docs: map[level.Level][]retrieval.ScoredDocument{
		level.Field: {evidence(level.Field, "f1", "doc", DefaultCoverageThreshold)},
	}}
	c := NewComplianceChecker(stub, nil)

	report, err := c.Check(context.Background(), "topic", []level.Level{level.Field})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Verdict != VerdictCompliant {
		t.Errorf("score at threshold should cover the level, verdict = %q", report.Verdict)
	}
}

func TestComplianceCheck_CustomThreshold(t *testing.T) {
	stub := &stubRetriever{docs: map[level.Level][]retrieval.ScoredDocument{
		level.Field: {evidence(level.Field, "f1", "doc", 0.5)},
	}}
	c := NewComplianceChecker(stub, nil, WithCoverageThreshold(0.4))

	report, err := c.Check(context.Background(), "topic", []level.Level{level.Field})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Verdict != VerdictCompliant {
		t.Errorf("lowered threshold should cover the level, verdict = %q", report.Verdict)
	}
}

func TestComplianceCheck_FocusLevelsSortedDeduped(t *testing.T) {
	stub := &stubRetriever{}
	c := NewComplianceChecker(stub, nil)

	report, err := c.Check(context.Background(), "topic",
		[]level.Level{level.Planning, level.Field, level.Planning})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if diff := cmp.Diff([]level.Level{level.Field, level.Planning}, report.FocusLevels); diff != "" {
		t.Errorf("FocusLevels mismatch (-want +got):\n%s", diff)
	}
	if len(stub.queriedLevels) != 2 {
		t.Errorf("duplicate focus levels must be queried once, got %d queries", len(stub.queriedLevels))
	}
}

func TestComplianceCheck_Validation(t *testing.T) {
	stub := &stubRetriever{}
	c := NewComplianceChecker(stub, nil)

	_, err := c.Check(context.Background(), "topic", nil)
	if !errors.Is(err, retrieval.ErrInvalidParameter) {
		t.Errorf("empty focus set: expected ErrInvalidParameter, got %v", err)
	}

	_, err = c.Check(context.Background(), "topic", []level.Level{level.Field, 6})
	if !errors.Is(err, level.ErrInvalidLevel) {
		t.Errorf("invalid focus level: expected ErrInvalidLevel, got %v", err)
	}

	if len(stub.queriedLevels) != 0 {
		t.Errorf("validation failures must not query collections, got %d queries", len(stub.queriedLevels))
	}
}

func TestComplianceCheck_RetrievalError(t *testing.T) {
	backendErr := errors.New("collection offline")
	stub := &stubRetriever{errs: map[level.Level]error{level.Field: backendErr}}
	c := NewComplianceChecker(stub, nil)

	_, err := c.Check(context.Background(), "topic", []level.Level{level.Field})
	if !errors.Is(err, backendErr) {
		t.Errorf("expected wrapped retrieval error, got: %v", err)
	}
}
