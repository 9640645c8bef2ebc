// Package gate implements the admission-control chain: TTL, daily limit,
// cooldown, and position exclusivity, followed by the execution-backend
// call. Gates are evaluated in order and the first failure wins, so
// rejection reasons are mutually exclusive per intent.
package gate

import (
	"context"
	"math"
	"time"

	"trade-intent-lab/internal/broker"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/observability"
)

// Params are the gate thresholds in force for one evaluation. They are
// passed in explicitly each tick and captured in the decision's parameter
// snapshot; the evaluator holds no hidden threshold state.
type Params struct {
	CooldownSec     int
	MaxOrdersPerDay int
	OnePositionOnly bool
}

// Snapshot returns the reproducibility record written with each decision.
func (p Params) Snapshot() *domain.ParamsSnapshot {
	return &domain.ParamsSnapshot{
		CooldownSec:     p.CooldownSec,
		MaxOrdersPerDay: p.MaxOrdersPerDay,
		OnePositionOnly: p.OnePositionOnly,
	}
}

// Decision is the terminal classification of one intent.
type Decision struct {
	Status  domain.Status  // SENT or REJECTED
	Reason  string         // rejection reason, empty when SENT
	Context map[string]any // per-reason detail
	OrderID string         // backend-assigned id, set when SENT
}

// Evaluator classifies NEW intents and drives the execution backend.
type Evaluator struct {
	broker  broker.Broker
	timeout time.Duration
	clock   func() time.Time
}

// NewEvaluator creates an evaluator. The timeout bounds every backend
// call; exceeding it is a backend failure, not a crash.
func NewEvaluator(b broker.Broker, timeout time.Duration) *Evaluator {
	return &Evaluator{
		broker:  b,
		timeout: timeout,
		clock:   time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// Evaluate runs the ordered gate chain for one intent. SELL intents skip
// the BUY-only gates (daily limit, cooldown, exclusivity) but are still
// subject to TTL and the backend call. Evaluate never mutates state; the
// caller applies side effects after the decision is durably persisted.
func (e *Evaluator) Evaluate(ctx context.Context, intent *domain.OrderIntent, state *State, params Params) *Decision {
	now := e.clock()

	if reason, detail := checkGates(intent, state, params, now); reason != "" {
		return &Decision{Status: domain.StatusRejected, Reason: reason, Context: detail}
	}

	return e.placeOrder(ctx, intent)
}

// checkGates evaluates the pure gates (1-4) without touching the backend.
func checkGates(intent *domain.OrderIntent, state *State, params Params, now time.Time) (string, map[string]any) {
	// Gate 1: TTL, all actions.
	if intent.Expired(now) {
		return domain.ReasonTTLExpired, map[string]any{
			"age_ms": float64(intent.AgeAt(now).Milliseconds()),
			"ttl_ms": intent.TTLMs,
		}
	}

	if intent.Action != domain.ActionBuy {
		return "", nil
	}

	// Gate 2: daily BUY limit. SELLs are never limited; blocking exits is
	// riskier than allowing them.
	if params.MaxOrdersPerDay > 0 && state.BuysSentToday >= params.MaxOrdersPerDay {
		return domain.ReasonDailyLimit, map[string]any{
			"buys_today":         state.BuysSentToday,
			"max_orders_per_day": params.MaxOrdersPerDay,
		}
	}

	// Gate 3: cooldown since the last admitted BUY.
	if params.CooldownSec > 0 && !state.LastTradeAt.IsZero() {
		elapsed := now.Sub(state.LastTradeAt)
		cooldown := time.Duration(params.CooldownSec) * time.Second
		if elapsed < cooldown {
			return domain.ReasonCooldown, map[string]any{
				"elapsed_sec":   round1(elapsed.Seconds()),
				"remaining_sec": round1((cooldown - elapsed).Seconds()),
				"cooldown_sec":  params.CooldownSec,
			}
		}
	}

	// Gate 4: position exclusivity.
	if params.OnePositionOnly && state.HasOpenPosition {
		return domain.ReasonOnePosition, map[string]any{
			"has_position": true,
		}
	}

	return "", nil
}

// placeOrder runs gate 5: the bounded backend call. A transport error or
// timeout is treated identically to a declined order.
func (e *Evaluator) placeOrder(ctx context.Context, intent *domain.OrderIntent) *Decision {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	result, err := e.broker.PlaceOrder(callCtx, intent.Symbol, intent.Action, broker.OrderTypeMarket, 1)
	observability.RecordBrokerCall(time.Since(started).Seconds(), err)
	if err != nil {
		return &Decision{
			Status:  domain.StatusRejected,
			Reason:  domain.ReasonBrokerError,
			Context: map[string]any{"broker_error": err.Error()},
		}
	}
	if !result.Success {
		return &Decision{
			Status:  domain.StatusRejected,
			Reason:  domain.ReasonBrokerError,
			Context: map[string]any{"broker_error": result.Reason},
		}
	}

	return &Decision{
		Status:  domain.StatusSent,
		OrderID: result.OrderID,
		Context: result.Context,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
