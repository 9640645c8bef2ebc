package domain

import "time"

// EventType classifies decision-log entries.
type EventType string

const (
	EventIntentCreated EventType = "INTENT_CREATED"
	EventAdmitted      EventType = "ADMITTED"
	EventRejected      EventType = "REJECTED"
	EventCounterReset  EventType = "COUNTER_RESET"
	EventBrokerAck     EventType = "BROKER_ACK"
	EventBrokerNack    EventType = "BROKER_NACK"
)

// Source module tags recorded on every decision event.
const (
	ModuleSignal = "SIGNALGEN"
	ModuleGate   = "GATE"
	ModuleBroker = "BROKER"
)

// ParamsSnapshot captures the gate thresholds in force at decision time.
// Written once per event for reproducibility, never mutated after append.
type ParamsSnapshot struct {
	CooldownSec     int  `json:"cooldown_sec"`
	MaxOrdersPerDay int  `json:"max_orders_per_day"`
	OnePositionOnly bool `json:"one_position_only"`
}

// DecisionEvent is an append-only audit record: one per pipeline decision
// plus lifecycle events (intent creation, counter reset, broker acks).
// The admission pipeline is the sole writer of ADMITTED/REJECTED events;
// entries are never edited or deleted after append.
type DecisionEvent struct {
	ID              int64 // surrogate key in decision_log, unused in JSONL
	Timestamp       time.Time
	SourceModule    string
	EventType       EventType
	IntentID        int64 // dedup key linking back to orders_intent (0 for system events)
	Symbol          string
	Action          Action
	Confidence      float64
	RulesetVersion  string
	RejectionReason string // populated only for REJECTED
	OrderID         string // populated for broker-originated events and admissions
	LatencyMs       *float64
	Context         map[string]any // per-reason detail (age_ms, remaining_sec, ...)
	Params          *ParamsSnapshot
}
