// Package reporting aggregates the per-day audit JSONL files into
// module/day summaries rendered as CSV or Markdown.
package reporting

import (
	"fmt"
	"sort"
	"time"

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/domain"
)

// modules lists the audit writers the report covers.
var modules = []string{domain.ModuleSignal, domain.ModuleGate, domain.ModuleBroker}

// Generator produces reports from the audit directory.
type Generator struct {
	dir string
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator for the given audit directory.
func NewGenerator(dir string) *Generator {
	return &Generator{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate reads every module's audit files and builds the summary rows.
// Replayed appends are collapsed by (event_type, intent_id) so a crash
// between the store commit and the audit append never inflates a count.
func (g *Generator) Generate() (*Report, error) {
	var rows []ModuleDayRow

	for _, module := range modules {
		days, err := audit.ListDays(g.dir, module)
		if err != nil {
			return nil, err
		}

		for _, day := range days {
			records, err := audit.ReadDay(g.dir, module, day)
			if err != nil {
				return nil, err
			}
			rows = append(rows, summarize(module, day, records))
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Module < rows[j].Module
	})

	return &Report{
		GeneratedAt: g.now(),
		Rows:        rows,
	}, nil
}

// summarize aggregates one module's records for one day.
func summarize(module, day string, records []audit.Record) ModuleDayRow {
	row := ModuleDayRow{
		Day:              day,
		Module:           module,
		RejectionReasons: make(map[string]int),
	}

	type dedupKey struct {
		eventType string
		intentID  int64
	}
	seen := make(map[dedupKey]struct{})

	var confidenceSum float64
	var confidenceN int
	var latencySum float64
	var latencyN int

	for _, rec := range records {
		if rec.IntentID > 0 {
			k := dedupKey{rec.EventType, rec.IntentID}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}

		switch domain.EventType(rec.EventType) {
		case domain.EventIntentCreated:
			row.Created++
			confidenceSum += rec.Confidence
			confidenceN++
		case domain.EventAdmitted:
			row.Admitted++
			confidenceSum += rec.Confidence
			confidenceN++
		case domain.EventRejected:
			row.Rejected++
			confidenceSum += rec.Confidence
			confidenceN++
			if rec.RejectionReason != "" {
				row.RejectionReasons[rec.RejectionReason]++
			}
		case domain.EventCounterReset:
			row.Resets++
		case domain.EventBrokerAck:
			row.Acks++
		case domain.EventBrokerNack:
			row.Nacks++
		}

		if rec.LatencyMs != nil {
			latencySum += *rec.LatencyMs
			latencyN++
		}
	}

	if decided := row.Admitted + row.Rejected; decided > 0 {
		row.AdmitRate = float64(row.Admitted) / float64(decided)
	}
	if confidenceN > 0 {
		row.MeanConfidence = confidenceSum / float64(confidenceN)
	}
	if latencyN > 0 {
		row.MeanLatencyMs = latencySum / float64(latencyN)
	}
	row.Aggressiveness = 0.5*row.AdmitRate + 0.5*row.MeanConfidence

	return row
}

// FormatDay converts an audit file day (YYYYMMDD) to YYYY-MM-DD.
func FormatDay(day string) string {
	if len(day) != 8 {
		return day
	}
	return fmt.Sprintf("%s-%s-%s", day[:4], day[4:6], day[6:8])
}
