package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

// integrationK is how many documents each side of the pair contributes.
const integrationK = 2

// FieldRule ties one data-flow field to the evidence terms that imply
// it. A field is required when any of its terms appears in the evidence
// retrieved at either end of the integration pair.
type FieldRule struct {
	Field string
	Terms []string
}

// FieldTable maps a lowercase domain name to its candidate field rules.
// The table is configuration, not fixed vocabulary; callers with their
// own domain model supply their own table through WithFieldTable.
type FieldTable map[string][]FieldRule

// DefaultFieldTable covers the common manufacturing domains.
func DefaultFieldTable() FieldTable {
	return FieldTable{
		"production": {
			{Field: "production_count", Terms: []string{"production", "output", "count", "units"}},
			{Field: "equipment_status", Terms: []string{"equipment", "machine", "status", "availability"}},
			{Field: "schedule_adherence", Terms: []string{"schedule", "plan", "order"}},
		},
		"quality": {
			{Field: "defect_rate", Terms: []string{"defect", "reject", "deviation"}},
			{Field: "inspection_results", Terms: []string{"inspection", "test", "measurement"}},
			{Field: "batch_quality", Terms: []string{"batch", "lot", "specification"}},
		},
		"maintenance": {
			{Field: "work_orders", Terms: []string{"work order", "repair", "maintenance"}},
			{Field: "equipment_health", Terms: []string{"condition", "vibration", "wear", "health"}},
			{Field: "downtime_events", Terms: []string{"downtime", "failure", "breakdown"}},
		},
	}
}

// genericRules backs domains the table does not know.
var genericRules = []FieldRule{
	{Field: "process_data", Terms: []string{"data", "process", "signal"}},
	{Field: "status_reports", Terms: []string{"report", "status", "summary"}},
}

// integrationPatterns describes the typical exchange for each upward
// level pair. Downward pairs reuse the pattern of their mirror.
var integrationPatterns = map[[2]level.Level]IntegrationPattern{
	{level.Field, level.Supervisory}: {
		DataFlow:   "Real-time process data, alarms, status information",
		Protocols:  "OPC-UA, Modbus, Ethernet/IP, HART",
		Challenges: "Real-time requirements, data volume, reliability",
	},
	{level.Supervisory, level.Planning}: {
		DataFlow:   "Production reports, batch records, performance metrics",
		Protocols:  "MES interfaces, databases, web services",
		Challenges: "Data aggregation, timing synchronization, context preservation",
	},
	{level.Planning, level.Management}: {
		DataFlow:   "KPIs, production schedules, resource utilization",
		Protocols:  "ERP interfaces, BI systems, REST APIs",
		Challenges: "Data summarization, business context, decision support",
	},
	{level.Field, level.Planning}: {
		DataFlow:   "Direct process optimization data, quality parameters",
		Protocols:  "Historian interfaces, advanced process control",
		Challenges: "Bypassing supervisory layer, data validation",
	},
	{level.Supervisory, level.Management}: {
		DataFlow:   "Operational dashboards, performance summaries",
		Protocols:  "Business intelligence tools, reporting systems",
		Challenges: "Executive summary level, trend analysis",
	},
	{level.Field, level.Management}: {
		DataFlow:   "Critical alarms, safety events, compliance data",
		Protocols:  "Emergency notification systems, audit trails",
		Challenges: "Priority management, escalation procedures",
	},
}

// IntegrationAnalyzer derives the data-flow requirements between two
// levels of the hierarchy for a given domain.
type IntegrationAnalyzer struct {
	retriever Retriever
	table     FieldTable
	logger    *slog.Logger
}

// IntegrationOption configures an IntegrationAnalyzer.
type IntegrationOption func(*IntegrationAnalyzer)

// WithFieldTable replaces the default domain field table.
func WithFieldTable(table FieldTable) IntegrationOption {
	return func(a *IntegrationAnalyzer) {
		if table != nil {
			a.table = table
		}
	}
}

// NewIntegrationAnalyzer creates an analyzer with the default field
// table. A nil logger falls back to slog.Default().
func NewIntegrationAnalyzer(retriever Retriever, logger *slog.Logger, opts ...IntegrationOption) *IntegrationAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &IntegrationAnalyzer{
		retriever: retriever,
		table:     DefaultFieldTable(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeIntegration queries both ends of a level pair for
// domain-relevant evidence and derives the fields that must flow
// between them.
//
// Missing evidence is not an error: when neither level returns a
// document the IntegrationSpec has no required fields and a rationale
// stating the evidence was insufficient. Equal or invalid levels fail
// with ErrInvalidRange or level.ErrInvalidLevel before any query runs.
func (a *IntegrationAnalyzer) AnalyzeIntegration(ctx context.Context, domain string, source, target level.Level) (*IntegrationSpec, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if source == target {
		return nil, fmt.Errorf("%w: source and target are both level %d", ErrInvalidRange, source)
	}

	sourceQuery := fmt.Sprintf("%s integration data output", domain)
	targetQuery := fmt.Sprintf("%s integration data input", domain)

	sourceDocs, err := a.queryLevel(ctx, sourceQuery, source)
	if err != nil {
		return nil, fmt.Errorf("source level %d: %w", source, err)
	}
	targetDocs, err := a.queryLevel(ctx, targetQuery, target)
	if err != nil {
		return nil, fmt.Errorf("target level %d: %w", target, err)
	}

	direction := FlowUpward
	if source > target {
		direction = FlowDownward
	}

	spec := &IntegrationSpec{
		SourceLevel:     source,
		TargetLevel:     target,
		Domain:          domain,
		Direction:       direction,
		Pattern:         patternFor(source, target),
		Recommendations: recommendations(source, target),
	}

	if len(sourceDocs) == 0 && len(targetDocs) == 0 {
		spec.RequiredFields = []string{}
		spec.Rationale = fmt.Sprintf(
			"Insufficient evidence: no documents for %q at level %d or level %d; no data-flow fields could be derived.",
			domain, source, target)
		return spec, nil
	}

	spec.RequiredFields, spec.Rationale = a.deriveFields(domain, source, target, sourceDocs, targetDocs)
	return spec, nil
}

func (a *IntegrationAnalyzer) queryLevel(ctx context.Context, query string, l level.Level) ([]retrieval.ScoredDocument, error) {
	perLevel, err := a.retriever.Retrieve(ctx, query, []level.Level{l}, retrieval.StrategyBasic, integrationK)
	if err != nil {
		return nil, err
	}
	return perLevel[l], nil
}

// deriveFields intersects the domain's candidate fields with the
// evidence at the two levels: a field is required when one of its terms
// appears at either end, and the rationale records which end matched.
func (a *IntegrationAnalyzer) deriveFields(domain string, source, target level.Level, sourceDocs, targetDocs []retrieval.ScoredDocument) ([]string, string) {
	rules, ok := a.table[strings.ToLower(strings.TrimSpace(domain))]
	if !ok {
		rules = genericRules
	}

	fields := make([]string, 0, len(rules))
	var cites []string
	for _, rule := range rules {
		atSource := mentionsAny(sourceDocs, rule.Terms)
		atTarget := mentionsAny(targetDocs, rule.Terms)
		if !atSource && !atTarget {
			continue
		}
		fields = append(fields, rule.Field)
		switch {
		case atSource && atTarget:
			cites = append(cites, fmt.Sprintf("%s (levels %d and %d)", rule.Field, source, target))
		case atSource:
			cites = append(cites, fmt.Sprintf("%s (level %d)", rule.Field, source))
		default:
			cites = append(cites, fmt.Sprintf("%s (level %d)", rule.Field, target))
		}
	}
	slices.Sort(fields)

	if len(fields) == 0 {
		return fields, fmt.Sprintf(
			"Evidence for %q exists but mentions none of the domain's data-flow terms; no fields derived.", domain)
	}
	return fields, fmt.Sprintf("Fields derived from %q evidence: %s.", domain, strings.Join(cites, ", "))
}

func mentionsAny(docs []retrieval.ScoredDocument, terms []string) bool {
	for _, doc := range docs {
		excerpt := strings.ToLower(doc.Excerpt)
		for _, term := range terms {
			if strings.Contains(excerpt, term) {
				return true
			}
		}
	}
	return false
}

// patternFor looks up the level pair's integration pattern, normalizing
// to the upward orientation the table is keyed by.
func patternFor(source, target level.Level) IntegrationPattern {
	if source > target {
		source, target = target, source
	}
	return integrationPatterns[[2]level.Level{source, target}]
}

func recommendations(source, target level.Level) []string {
	var recs []string
	if source < target {
		recs = append(recs,
			"Implement data aggregation and filtering",
			"Ensure proper data validation and cleansing",
			"Consider real-time versus batch processing requirements",
			"Plan for data buffering during outages",
		)
	} else {
		recs = append(recs,
			"Implement command validation and authorization",
			"Ensure proper change management procedures",
			"Consider impact on lower level operations",
			"Plan for emergency override capabilities",
		)
	}

	diff := int(source) - int(target)
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		recs = append(recs,
			"Consider intermediate level involvement",
			"Ensure audit trail for direct cross-level communication",
		)
	}
	return recs
}
