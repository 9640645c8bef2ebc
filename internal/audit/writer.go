// Package audit provides the append-only JSONL decision-event sink: one
// JSON object per line, one file per module per calendar day, independent
// of the relational store so decisions stay observable offline.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trade-intent-lab/internal/domain"
)

// tsFormat is a fixed, lexically sortable UTC timestamp with milliseconds.
const tsFormat = "2006-01-02T15:04:05.000Z"

// Record is the JSONL form of a decision event.
type Record struct {
	Ts              string                 `json:"ts"`
	Module          string                 `json:"module"`
	EventType       string                 `json:"event_type"`
	IntentID        int64                  `json:"intent_id,omitempty"`
	Symbol          string                 `json:"symbol"`
	Action          string                 `json:"action"`
	Confidence      float64                `json:"confidence"`
	RulesetVersion  string                 `json:"ruleset_version"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	OrderID         string                 `json:"order_id,omitempty"`
	LatencyMs       *float64               `json:"latency_ms,omitempty"`
	Context         map[string]any         `json:"context,omitempty"`
	Params          *domain.ParamsSnapshot `json:"params_snapshot,omitempty"`
}

// Time parses the record timestamp.
func (r Record) Time() (time.Time, error) {
	return time.Parse(tsFormat, r.Ts)
}

// Writer appends decision events to per-day JSONL files for one module.
// Appends are individually idempotent to re-attempt: the intent_id field is
// the dedup key readers use after a replay.
type Writer struct {
	dir    string
	module string
	mu     sync.Mutex
}

// NewWriter creates a writer for the given module under dir.
func NewWriter(dir, module string) *Writer {
	return &Writer{dir: dir, module: module}
}

// Append writes one event as a single JSON line. The file is opened in
// append mode per call so a crash never leaves a partially buffered event.
func (w *Writer) Append(ev *domain.DecisionEvent) error {
	if ev == nil {
		return fmt.Errorf("append audit event: nil event")
	}

	rec := Record{
		Ts:              ev.Timestamp.UTC().Format(tsFormat),
		Module:          w.module,
		EventType:       string(ev.EventType),
		IntentID:        ev.IntentID,
		Symbol:          ev.Symbol,
		Action:          string(ev.Action),
		Confidence:      ev.Confidence,
		RulesetVersion:  ev.RulesetVersion,
		RejectionReason: ev.RejectionReason,
		OrderID:         ev.OrderID,
		LatencyMs:       ev.LatencyMs,
		Context:         ev.Context,
		Params:          ev.Params,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	path := w.pathFor(ev.Timestamp)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// pathFor names the file for the event's UTC calendar day.
func (w *Writer) pathFor(ts time.Time) string {
	name := fmt.Sprintf("%s_%s.jsonl", strings.ToLower(w.module), ts.UTC().Format("20060102"))
	return filepath.Join(w.dir, name)
}
