// Package pipeline provides the admission loop: a single-threaded,
// fixed-tick poll that drains NEW intents oldest-first, classifies each
// through the gate chain, and records the decision in the store and the
// audit sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/config"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/gate"
	"trade-intent-lab/internal/observability"
	"trade-intent-lab/internal/storage"
)

// Runner drives the admission pipeline. It is the sole mutator of the gate
// state; intents are evaluated strictly in creation order, one at a time.
type Runner struct {
	intents   storage.IntentStore
	evaluator *gate.Evaluator
	auditSink *audit.Writer
	params    config.Provider
	state     *gate.State
	loc       *time.Location
	logger    *log.Logger
	clock     func() time.Time
}

// Options contains configuration for creating a Runner.
type Options struct {
	IntentStore storage.IntentStore
	Evaluator   *gate.Evaluator
	AuditSink   *audit.Writer
	Params      config.Provider
	State       *gate.State // rebuilt by the caller before the loop starts
	TradingZone *time.Location
	Logger      *log.Logger
	Clock       func() time.Time
}

// NewRunner creates a new pipeline runner.
func NewRunner(opts Options) *Runner {
	loc := opts.TradingZone
	if loc == nil {
		loc = domain.DefaultTradingZone
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	state := opts.State
	if state == nil {
		state = &gate.State{}
	}

	return &Runner{
		intents:   opts.IntentStore,
		evaluator: opts.Evaluator,
		auditSink: opts.AuditSink,
		params:    opts.Params,
		state:     state,
		loc:       loc,
		logger:    logger,
		clock:     clock,
	}
}

// State exposes the current gate state for inspection.
func (r *Runner) State() *gate.State {
	return r.state
}

// Run executes the polling loop until the context is cancelled. Each tick
// runs to completion once started; errors within a tick affect only the
// current batch and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("[gate] admission pipeline started (trade_day=%s, buys_today=%d)",
		r.state.TradeDay, r.state.BuysSentToday)

	poll := time.Second
	for {
		if interval, err := r.Tick(ctx); err != nil {
			r.logger.Printf("[gate] tick error: %v", err)
		} else {
			poll = interval
		}

		select {
		case <-ctx.Done():
			r.logger.Printf("[gate] admission pipeline stopping")
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Tick performs one poll cycle and returns the poll interval the current
// parameters ask for. Parameters are re-read every tick so threshold
// changes apply without a restart.
func (r *Runner) Tick(ctx context.Context) (time.Duration, error) {
	params, err := r.params()
	if err != nil {
		return 0, fmt.Errorf("load params: %w", err)
	}
	poll := time.Duration(params.Execution.PollIntervalMs) * time.Millisecond

	r.rolloverDay(ctx)

	batch, err := r.intents.NextBatch(ctx, params.Execution.BatchSize)
	if err != nil {
		// Transient store error: intents stay NEW and are retried next tick.
		observability.RecordDBError("next_batch")
		return poll, fmt.Errorf("fetch batch: %w", err)
	}
	observability.UpdatePendingIntents(len(batch))

	gateParams := gate.Params{
		CooldownSec:     params.Execution.CooldownSec,
		MaxOrdersPerDay: params.Execution.MaxOrdersPerDay,
		OnePositionOnly: params.Execution.OnePositionOnly,
	}

	for _, intent := range batch {
		if err := r.processIntent(ctx, intent, gateParams); err != nil {
			r.logger.Printf("[gate] intent %d left NEW for retry: %v", intent.ID, err)
		}
	}

	return poll, nil
}

// processIntent classifies one intent and persists the outcome. The status
// transition and the decision event commit together; the audit append is an
// independent, individually re-attemptable operation keyed by intent id.
func (r *Runner) processIntent(ctx context.Context, intent *domain.OrderIntent, gateParams gate.Params) error {
	decision := r.evaluator.Evaluate(ctx, intent, r.state, gateParams)

	now := r.clock()
	latencyMs := float64(now.Sub(intent.CreatedAt).Milliseconds())

	eventType := domain.EventAdmitted
	if decision.Status == domain.StatusRejected {
		eventType = domain.EventRejected
	}

	ev := &domain.DecisionEvent{
		Timestamp:       now,
		SourceModule:    domain.ModuleGate,
		EventType:       eventType,
		IntentID:        intent.ID,
		Symbol:          intent.Symbol,
		Action:          intent.Action,
		Confidence:      intent.Confidence,
		RulesetVersion:  intent.RulesetVersion,
		RejectionReason: decision.Reason,
		OrderID:         decision.OrderID,
		LatencyMs:       &latencyMs,
		Context:         decision.Context,
		Params:          gateParams.Snapshot(),
	}

	err := r.intents.Decide(ctx, intent.ID, decision.Status, ev)
	if errors.Is(err, storage.ErrAlreadyDecided) {
		// Replay after a crash: the earlier run committed this decision,
		// so neither the counters nor the audit trail may see it again.
		r.logger.Printf("[gate] intent %d already decided, skipping replay", intent.ID)
		return nil
	}
	if err != nil {
		observability.RecordDBError("decide")
		return err
	}

	if err := r.auditSink.Append(ev); err != nil {
		observability.RecordAuditError()
		r.logger.Printf("[gate] audit append failed for intent %d: %v", intent.ID, err)
	}

	if decision.Status == domain.StatusSent {
		r.logger.Printf("[gate] SENT %s %s score=%.2f ver=%s order=%s",
			intent.Action, intent.Symbol, intent.Confidence, intent.RulesetVersion, decision.OrderID)
		if intent.Action == domain.ActionBuy {
			r.state.RecordBuy(now)
			observability.UpdateDailyBuys(r.state.BuysSentToday)
		}
	} else {
		r.logger.Printf("[gate] REJECTED %s %s reason=%s score=%.2f ver=%s",
			intent.Action, intent.Symbol, decision.Reason, intent.Confidence, intent.RulesetVersion)
	}
	observability.RecordDecision(string(decision.Status), decision.Reason)

	return nil
}

// rolloverDay reloads the daily BUY count from the store when the trading
// day changes. The in-memory count is never trusted across a day boundary.
func (r *Runner) rolloverDay(ctx context.Context) {
	day := domain.TradeDayOf(r.clock(), r.loc)
	if day == r.state.TradeDay {
		return
	}

	buys, err := r.intents.CountSentBuys(ctx, day)
	if err != nil {
		r.logger.Printf("[gate] day rollover count failed, keeping previous state: %v", err)
		return
	}

	r.state.TradeDay = day
	r.state.BuysSentToday = buys
	observability.UpdateDailyBuys(buys)
	r.logger.Printf("[gate] day changed -> reloaded sent BUY count = %d (day=%s)", buys, day)
}
