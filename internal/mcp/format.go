package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/strataworks/strata/internal/analysis"
	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

// The tools answer in plain text: the consuming agent turns these
// reports into natural language, so structure beats markup here.

func formatRetrieval(query string, strategy retrieval.Strategy, ranked []retrieval.ScoredDocument, partial *retrieval.PartialFailureError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Retrieval results for: %q (strategy: %s)\n", query, strategy)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if partial != nil {
		fmt.Fprintf(&b, "Warning: some levels were unavailable: %s\n", partial.Error())
	}

	if len(ranked) == 0 {
		b.WriteString("No documents found.\n")
		return b.String()
	}

	for i, doc := range ranked {
		fmt.Fprintf(&b, "\n%d. [%s] %s (score %.3f)\n", i+1, doc.Level, doc.ID, doc.Score)
		b.WriteString(indent(truncate(doc.Excerpt, 300)))
	}
	return b.String()
}

func formatCrossLevel(report *analysis.CrossLevelReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cross-Level Analysis for: %q\n", report.Query)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for _, entry := range report.Entries {
		fmt.Fprintf(&b, "\n%s:\n", entry.Level)
		b.WriteString(strings.Repeat("-", 40) + "\n")
		b.WriteString(entry.Summary + "\n")
		for _, doc := range entry.Supporting {
			fmt.Fprintf(&b, "  - %s (score %.3f)\n", doc.ID, doc.Score)
		}
	}

	b.WriteString("\nCascade Summary:\n")
	b.WriteString(strings.Repeat("=", 30) + "\n")
	b.WriteString(report.CascadeSummary + "\n")
	return b.String()
}

func formatIntegration(spec *analysis.IntegrationSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Integration Points Analysis: %s\n", spec.Domain)
	fmt.Fprintf(&b, "From %s to %s (%s flow)\n", spec.SourceLevel, spec.TargetLevel, spec.Direction)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString("Required Fields:\n")
	if len(spec.RequiredFields) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, f := range spec.RequiredFields {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	fmt.Fprintf(&b, "Rationale: %s\n\n", spec.Rationale)

	b.WriteString("Integration Pattern:\n")
	fmt.Fprintf(&b, "  Typical Data Flow: %s\n", spec.Pattern.DataFlow)
	fmt.Fprintf(&b, "  Common Protocols: %s\n", spec.Pattern.Protocols)
	fmt.Fprintf(&b, "  Key Challenges: %s\n\n", spec.Pattern.Challenges)

	b.WriteString("Recommendations:\n")
	for _, r := range spec.Recommendations {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	return b.String()
}

func formatCompliance(report *analysis.ComplianceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Coverage Check: %q\n", report.Topic)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&b, "Focus levels: %s\n", levelList(report.FocusLevels))
	fmt.Fprintf(&b, "Covered: %s\n", levelList(report.CoveredLevels))
	fmt.Fprintf(&b, "Gaps: %s\n", levelList(report.Gaps))
	fmt.Fprintf(&b, "Verdict: %s\n", report.Verdict)
	return b.String()
}

func formatStats(counts map[level.Level]int) string {
	var b strings.Builder
	b.WriteString("Collection statistics:\n")
	total := 0
	for _, l := range level.All() {
		fmt.Fprintf(&b, "  %s: %d documents\n", l, counts[l])
		total += counts[l]
	}
	fmt.Fprintf(&b, "Total: %d documents\n", total)
	return b.String()
}

func levelList(levels []level.Level) string {
	if len(levels) == 0 {
		return "(none)"
	}
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = l.String()
	}
	return strings.Join(parts, ", ")
}

// truncate cuts s to at most n bytes without splitting a multi-byte
// rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "   " + line
	}
	return strings.Join(lines, "\n") + "\n"
}
