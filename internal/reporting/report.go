package reporting

import "time"

// Report summarizes the audit trail per module and trading day.
type Report struct {
	GeneratedAt time.Time
	Rows        []ModuleDayRow
}

// ModuleDayRow aggregates one module's audit events for one calendar day
// (YYYYMMDD, as the audit files are named).
type ModuleDayRow struct {
	Day    string
	Module string

	Created  int
	Admitted int
	Rejected int
	Resets   int
	Acks     int
	Nacks    int

	// Rejection counts keyed by reason code.
	RejectionReasons map[string]int

	AdmitRate      float64 // admitted / (admitted + rejected), 0 when nothing was decided
	MeanConfidence float64 // over created and decided events
	MeanLatencyMs  float64 // over events carrying a latency

	// Aggressiveness blends admit rate and mean confidence 50/50.
	// A reporting convenience only; the pipeline never reads it back.
	Aggressiveness float64
}
