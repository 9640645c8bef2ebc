package domain

import "time"

// Action is the side of an order intent.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Status is the lifecycle state of an order intent.
// Intents transition exactly once from NEW to SENT or REJECTED.
// PROCESSED is reachable only from SENT via the administrative
// counter reset, never from the pipeline itself.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusSent      Status = "SENT"
	StatusRejected  Status = "REJECTED"
	StatusProcessed Status = "PROCESSED"
)

// Rejection reason codes. Reasons are mutually exclusive per intent:
// the first failing gate wins.
const (
	ReasonTTLExpired  = "TTL_EXPIRED"
	ReasonDailyLimit  = "DAILY_LIMIT"
	ReasonCooldown    = "COOLDOWN"
	ReasonOnePosition = "ONE_POSITION"
	ReasonBrokerError = "BROKER_ERROR"
)

// OrderIntent represents a candidate trade signal awaiting an admission
// decision. Corresponds to one row in the orders_intent table.
// All fields except Status are immutable once the row is created.
type OrderIntent struct {
	ID             int64     // monotonic surrogate key, assigned by the store
	CreatedAt      time.Time // signal creation time
	ObservedAt     time.Time // time the signal was observed by the source
	TradeDay       string    // trading-calendar day (YYYY-MM-DD), fixed timezone
	Symbol         string
	Action         Action
	Confidence     float64 // signal confidence in [0,1]
	TTLMs          int64   // validity window in milliseconds
	RulesetVersion string  // filter-parameter set that produced this intent
	Status         Status
}

// DefaultTradingZone is the fixed timezone used to bucket trading days.
// A fixed offset keeps trade_day assignment independent of the host tzdata.
var DefaultTradingZone = time.FixedZone("KST", 9*60*60)

// TradeDayOf buckets a timestamp into a trading-calendar day.
// The result is assigned once at intent creation and never recomputed
// from a timestamp at query time.
func TradeDayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = DefaultTradingZone
	}
	return t.In(loc).Format("2006-01-02")
}

// AgeAt returns the intent age at the given instant.
func (i *OrderIntent) AgeAt(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

// Expired reports whether the intent's TTL has elapsed at the given instant.
// A non-positive TTL disables expiry, matching the signal source contract.
func (i *OrderIntent) Expired(now time.Time) bool {
	if i.TTLMs <= 0 {
		return false
	}
	return i.AgeAt(now).Milliseconds() > i.TTLMs
}
