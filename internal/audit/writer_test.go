package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trade-intent-lab/internal/domain"
)

func testEvent(ts time.Time, id int64) *domain.DecisionEvent {
	latency := 42.0
	return &domain.DecisionEvent{
		Timestamp:      ts,
		SourceModule:   domain.ModuleGate,
		EventType:      domain.EventAdmitted,
		IntentID:       id,
		Symbol:         "005930",
		Action:         domain.ActionBuy,
		Confidence:     0.75,
		RulesetVersion: "v1",
		OrderID:        "MOCK-1",
		LatencyMs:      &latency,
		Context:        map[string]any{"quantity": 1.0},
		Params:         &domain.ParamsSnapshot{CooldownSec: 30, MaxOrdersPerDay: 5, OnePositionOnly: true},
	}
}

func TestAppend_OneFilePerModulePerDay(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, domain.ModuleGate)

	day1 := time.Date(2026, 1, 28, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 29, 0, 1, 0, 0, time.UTC)
	if err := w.Append(testEvent(day1, 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Append(testEvent(day2, 2)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for _, name := range []string{"gate_20260128.jsonl", "gate_20260129.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected file %s: %v", name, err)
		}
	}
}

func TestAppend_ReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, domain.ModuleGate)
	ts := time.Date(2026, 1, 28, 14, 35, 42, 123_000_000, time.UTC)

	if err := w.Append(testEvent(ts, 7)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := ReadFile(filepath.Join(dir, "gate_20260128.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Ts != "2026-01-28T14:35:42.123Z" {
		t.Errorf("Expected millisecond UTC timestamp, got %s", rec.Ts)
	}
	if rec.Module != domain.ModuleGate || rec.EventType != string(domain.EventAdmitted) {
		t.Errorf("Unexpected module/event: %s/%s", rec.Module, rec.EventType)
	}
	if rec.IntentID != 7 || rec.OrderID != "MOCK-1" {
		t.Errorf("Unexpected identifiers: intent=%d order=%s", rec.IntentID, rec.OrderID)
	}
	if rec.LatencyMs == nil || *rec.LatencyMs != 42.0 {
		t.Errorf("Unexpected latency: %v", rec.LatencyMs)
	}
	if rec.Params == nil || rec.Params.CooldownSec != 30 {
		t.Errorf("Unexpected params snapshot: %+v", rec.Params)
	}

	parsed, err := rec.Time()
	if err != nil {
		t.Fatalf("Time parse failed: %v", err)
	}
	if !parsed.Equal(ts) {
		t.Errorf("Expected %v, got %v", ts, parsed)
	}
}

func TestAppend_TimestampsAreSortable(t *testing.T) {
	// Lexical order of the ts field must match chronological order.
	a := time.Date(2026, 1, 28, 9, 5, 0, 900_000_000, time.UTC)
	b := time.Date(2026, 1, 28, 10, 0, 0, 1_000_000, time.UTC)

	fa := a.Format(tsFormat)
	fb := b.Format(tsFormat)
	if !(fa < fb) {
		t.Errorf("Expected %s < %s", fa, fb)
	}
}

func TestReadDay_MissingFileIsEmpty(t *testing.T) {
	records, err := ReadDay(t.TempDir(), domain.ModuleGate, "20260128")
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if records != nil {
		t.Errorf("Expected nil records, got %v", records)
	}
}

func TestReadFile_CorruptLineIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gate_20260128.jsonl")
	content := `{"ts":"2026-01-28T00:00:00.000Z","module":"GATE","event_type":"ADMITTED","symbol":"005930","action":"BUY","confidence":0.7,"ruleset_version":"v1"}` + "\nnot json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := ReadFile(path)
	if err == nil {
		t.Fatal("Expected error for corrupt line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected line number in error, got %v", err)
	}
}

func TestListDays(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, domain.ModuleGate)
	other := NewWriter(dir, domain.ModuleSignal)

	for _, ts := range []time.Time{
		time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC),
	} {
		if err := w.Append(testEvent(ts, 1)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := other.Append(testEvent(time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	days, err := ListDays(dir, domain.ModuleGate)
	if err != nil {
		t.Fatalf("ListDays failed: %v", err)
	}
	if len(days) != 2 || days[0] != "20260128" || days[1] != "20260129" {
		t.Errorf("Expected sorted GATE days, got %v", days)
	}

	// A module with no files yields nothing, not an error.
	days, err = ListDays(dir, domain.ModuleBroker)
	if err != nil || len(days) != 0 {
		t.Errorf("Expected no BROKER days, got %v / %v", days, err)
	}
}
