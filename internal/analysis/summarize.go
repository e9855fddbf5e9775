package analysis

import (
	"strings"

	"github.com/strataworks/strata/internal/retrieval"
)

const (
	// minInsightLen filters out sentence fragments when extracting
	// insights from an excerpt.
	minInsightLen = 20

	// maxInsights caps how many insights a per-level summary carries.
	maxInsights = 3
)

// firstInsight returns the first sentence of text longer than
// minInsightLen, or "" when nothing qualifies.
func firstInsight(text string) string {
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if len(s) > minInsightLen {
			return s
		}
	}
	return ""
}

// keyInsights extracts up to maxInsights one-sentence insights from the
// documents, in ranking order.
func keyInsights(docs []retrieval.ScoredDocument) []string {
	insights := make([]string, 0, maxInsights)
	for _, doc := range docs {
		if len(insights) == maxInsights {
			break
		}
		if s := firstInsight(doc.Excerpt); s != "" {
			insights = append(insights, s)
		}
	}
	return insights
}

// summarize builds a level's narrative summary from its insights.
func summarize(insights []string) string {
	if len(insights) == 0 {
		return "No direct evidence at this level."
	}
	var b strings.Builder
	b.WriteString("Key insights: ")
	for i, insight := range insights {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(insight)
	}
	b.WriteString(".")
	return b.String()
}
