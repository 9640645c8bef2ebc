package reporting

import (
	"strings"
	"testing"
	"time"

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/domain"
)

func writeEvent(t *testing.T, w *audit.Writer, ev *domain.DecisionEvent) {
	t.Helper()
	if err := w.Append(ev); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func buildAuditDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ts := time.Date(2026, 1, 28, 5, 0, 0, 0, time.UTC)
	latency := 12.5

	sig := audit.NewWriter(dir, domain.ModuleSignal)
	gate := audit.NewWriter(dir, domain.ModuleGate)
	brk := audit.NewWriter(dir, domain.ModuleBroker)

	for i := int64(1); i <= 3; i++ {
		writeEvent(t, sig, &domain.DecisionEvent{
			Timestamp:      ts,
			SourceModule:   domain.ModuleSignal,
			EventType:      domain.EventIntentCreated,
			IntentID:       i,
			Symbol:         "005930",
			Action:         domain.ActionBuy,
			Confidence:     0.70,
			RulesetVersion: "v1",
		})
	}

	writeEvent(t, gate, &domain.DecisionEvent{
		Timestamp:      ts,
		SourceModule:   domain.ModuleGate,
		EventType:      domain.EventAdmitted,
		IntentID:       1,
		Symbol:         "005930",
		Action:         domain.ActionBuy,
		Confidence:     0.80,
		RulesetVersion: "v1",
		OrderID:        "MOCK-1",
		LatencyMs:      &latency,
	})
	writeEvent(t, gate, &domain.DecisionEvent{
		Timestamp:       ts,
		SourceModule:    domain.ModuleGate,
		EventType:       domain.EventRejected,
		IntentID:        2,
		Symbol:          "005930",
		Action:          domain.ActionBuy,
		Confidence:      0.60,
		RulesetVersion:  "v1",
		RejectionReason: domain.ReasonCooldown,
	})
	writeEvent(t, gate, &domain.DecisionEvent{
		Timestamp:       ts,
		SourceModule:    domain.ModuleGate,
		EventType:       domain.EventRejected,
		IntentID:        3,
		Symbol:          "005930",
		Action:          domain.ActionBuy,
		Confidence:      0.70,
		RulesetVersion:  "v1",
		RejectionReason: domain.ReasonTTLExpired,
	})

	writeEvent(t, brk, &domain.DecisionEvent{
		Timestamp:    ts,
		SourceModule: domain.ModuleBroker,
		EventType:    domain.EventBrokerAck,
		IntentID:     1,
		Symbol:       "005930",
		Action:       domain.ActionBuy,
		OrderID:      "MOCK-1",
	})

	return dir
}

func findRow(t *testing.T, rows []ModuleDayRow, module string) ModuleDayRow {
	t.Helper()
	for _, row := range rows {
		if row.Module == module {
			return row
		}
	}
	t.Fatalf("No row for module %s", module)
	return ModuleDayRow{}
}

func TestGenerate_AggregatesPerModuleDay(t *testing.T) {
	dir := buildAuditDir(t)

	report, err := NewGenerator(dir).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Rows) != 3 {
		t.Fatalf("Expected 3 module/day rows, got %d", len(report.Rows))
	}

	sig := findRow(t, report.Rows, domain.ModuleSignal)
	if sig.Created != 3 {
		t.Errorf("Expected 3 created, got %d", sig.Created)
	}
	if sig.Day != "20260128" {
		t.Errorf("Expected day 20260128, got %s", sig.Day)
	}

	gate := findRow(t, report.Rows, domain.ModuleGate)
	if gate.Admitted != 1 || gate.Rejected != 2 {
		t.Errorf("Expected 1 admitted / 2 rejected, got %d / %d", gate.Admitted, gate.Rejected)
	}
	if gate.RejectionReasons[domain.ReasonCooldown] != 1 {
		t.Errorf("Expected 1 COOLDOWN rejection, got %d", gate.RejectionReasons[domain.ReasonCooldown])
	}
	if gate.RejectionReasons[domain.ReasonTTLExpired] != 1 {
		t.Errorf("Expected 1 TTL_EXPIRED rejection, got %d", gate.RejectionReasons[domain.ReasonTTLExpired])
	}

	wantRate := 1.0 / 3.0
	if diff := gate.AdmitRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected admit rate %.4f, got %.4f", wantRate, gate.AdmitRate)
	}
	wantConf := (0.80 + 0.60 + 0.70) / 3.0
	if diff := gate.MeanConfidence - wantConf; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected mean confidence %.4f, got %.4f", wantConf, gate.MeanConfidence)
	}
	wantAggr := 0.5*wantRate + 0.5*wantConf
	if diff := gate.Aggressiveness - wantAggr; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected aggressiveness %.4f, got %.4f", wantAggr, gate.Aggressiveness)
	}
	if gate.MeanLatencyMs != 12.5 {
		t.Errorf("Expected mean latency 12.5, got %.2f", gate.MeanLatencyMs)
	}

	brk := findRow(t, report.Rows, domain.ModuleBroker)
	if brk.Acks != 1 || brk.Nacks != 0 {
		t.Errorf("Expected 1 ack / 0 nacks, got %d / %d", brk.Acks, brk.Nacks)
	}
}

func TestGenerate_DedupsReplayedAppends(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 28, 5, 0, 0, 0, time.UTC)
	gate := audit.NewWriter(dir, domain.ModuleGate)

	ev := &domain.DecisionEvent{
		Timestamp:      ts,
		SourceModule:   domain.ModuleGate,
		EventType:      domain.EventAdmitted,
		IntentID:       7,
		Symbol:         "005930",
		Action:         domain.ActionBuy,
		Confidence:     0.75,
		RulesetVersion: "v1",
	}
	// The same decision appended twice, as a crash between the store
	// commit and the audit write would produce on restart.
	writeEvent(t, gate, ev)
	writeEvent(t, gate, ev)

	report, err := NewGenerator(dir).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	row := findRow(t, report.Rows, domain.ModuleGate)
	if row.Admitted != 1 {
		t.Errorf("Expected replayed append to count once, got %d", row.Admitted)
	}
}

func TestGenerate_EmptyDir(t *testing.T) {
	report, err := NewGenerator(t.TempDir()).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(report.Rows) != 0 {
		t.Errorf("Expected no rows for empty dir, got %d", len(report.Rows))
	}
}

func TestRenderCSV(t *testing.T) {
	dir := buildAuditDir(t)
	report, err := NewGenerator(dir).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	csv := RenderCSV(report.Rows)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "day,module,created,admitted,rejected") {
		t.Errorf("Unexpected CSV header: %s", lines[0])
	}
	if !strings.Contains(csv, "2026-01-28,GATE,0,1,2,1,0,1,0,0") {
		t.Errorf("GATE row missing or malformed:\n%s", csv)
	}
}

func TestRenderMarkdown(t *testing.T) {
	dir := buildAuditDir(t)
	fixed := time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC)
	report, err := NewGenerator(dir).WithClock(func() time.Time { return fixed }).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Admission Pipeline Report",
		"Generated: 2026-01-29T00:00:00Z",
		"## Daily Summary",
		"## Rejection Reasons",
		"| 2026-01-28 | GATE | COOLDOWN | 1 |",
		"| 2026-01-28 | BROKER | 0 | 1 | 0 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}
