// Package signalgen produces synthetic order intents: a paced stream of
// Gaussian-scored BUY/SELL signals filtered through quality gates before
// they ever reach the store. Intents that fail a quality gate are skipped
// at the source, not rejected by the pipeline.
package signalgen

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/config"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/observability"
	"trade-intent-lab/internal/storage"
)

// Skip reasons for signals discarded before insert. These never appear in
// the decision log; skipped signals have no intent row to decide on.
const (
	SkipLowConfidence     = "LOW_CONFIDENCE"
	SkipDuplicateCooldown = "DUPLICATE_COOLDOWN"
	SkipBurstGuard        = "BURST_GUARD"
)

type pairKey struct {
	symbol string
	action domain.Action
}

// Generator emits synthetic order intents at a configured pace.
type Generator struct {
	intents   storage.IntentStore
	events    storage.DecisionLogStore
	auditSink *audit.Writer
	params    config.Provider
	loc       *time.Location
	logger    *log.Logger
	rng       *rand.Rand
	clock     func() time.Time

	lastSeen     map[string]time.Time  // per-symbol dedupe window
	lastEmitted  map[pairKey]time.Time // per (symbol, action) duplicate cooldown
	creations    []time.Time           // sliding window for the burst guard
	blockedUntil time.Time             // burst guard block horizon
}

// Options contains configuration for creating a Generator.
type Options struct {
	IntentStore storage.IntentStore
	EventStore  storage.DecisionLogStore
	AuditSink   *audit.Writer
	Params      config.Provider
	TradingZone *time.Location
	Logger      *log.Logger
	Seed        int64            // 0 seeds from the wall clock
	Clock       func() time.Time // defaults to time.Now
}

// NewGenerator creates a new signal generator.
func NewGenerator(opts Options) *Generator {
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

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		intents:     opts.IntentStore,
		events:      opts.EventStore,
		auditSink:   opts.AuditSink,
		params:      opts.Params,
		loc:         loc,
		logger:      logger,
		rng:         rand.New(rand.NewSource(seed)),
		clock:       clock,
		lastSeen:    make(map[string]time.Time),
		lastEmitted: make(map[pairKey]time.Time),
	}
}

// Run emits intents until the context is cancelled. The pace is re-read
// from the parameter provider every iteration, so tuning changes apply
// without a restart.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Println("[signalgen] started")

	for {
		interval, err := g.Tick(ctx)
		if err != nil {
			g.logger.Printf("[signalgen] tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			g.logger.Println("[signalgen] stopping")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Tick generates at most one intent and returns the pause before the next
// attempt. A store failure drops the candidate signal; nothing is retried,
// the next tick draws a fresh one.
func (g *Generator) Tick(ctx context.Context) (time.Duration, error) {
	params, err := g.params()
	if err != nil {
		return time.Second, fmt.Errorf("load params: %w", err)
	}
	interval := paceInterval(params.Signal.IntentsPerMin)

	now := g.clock()
	symbol := g.selectSymbol(params.Signal.Symbols, now, params.Signal.DedupeWindowSec)
	score := clamp(g.rng.NormFloat64()*params.Signal.ConfidenceStd+params.Signal.ConfidenceMean, 0, 1)
	action := domain.ActionSell
	if g.rng.Float64() < params.Signal.BuyRatio {
		action = domain.ActionBuy
	}

	if reason := g.checkQuality(symbol, action, score, now, params.Signal); reason != "" {
		observability.RecordSignalSkipped(reason)
		// Low-confidence draws are discarded silently; the other gates
		// indicate a pacing problem worth surfacing.
		if reason != SkipLowConfidence {
			g.logger.Printf("[signalgen] SKIPPED %s %s reason=%s score=%.2f", action, symbol, reason, score)
		}
		return interval, nil
	}

	intent := &domain.OrderIntent{
		CreatedAt:      now,
		ObservedAt:     now,
		TradeDay:       domain.TradeDayOf(now, g.loc),
		Symbol:         symbol,
		Action:         action,
		Confidence:     score,
		TTLMs:          params.Signal.SignalTTLMs,
		RulesetVersion: params.Version,
		Status:         domain.StatusNew,
	}

	id, err := g.intents.Insert(ctx, intent)
	if err != nil {
		observability.RecordDBError("insert_intent")
		return interval, fmt.Errorf("insert intent: %w", err)
	}

	g.lastEmitted[pairKey{symbol, action}] = now
	g.creations = append(g.creations, now)
	g.lastSeen[symbol] = now

	ev := &domain.DecisionEvent{
		Timestamp:      now,
		SourceModule:   domain.ModuleSignal,
		EventType:      domain.EventIntentCreated,
		IntentID:       id,
		Symbol:         symbol,
		Action:         action,
		Confidence:     score,
		RulesetVersion: params.Version,
		Context: map[string]any{
			"ttl_ms":          params.Signal.SignalTTLMs,
			"intents_per_min": params.Signal.IntentsPerMin,
			"buy_ratio":       params.Signal.BuyRatio,
		},
	}
	if err := g.events.Append(ctx, ev); err != nil {
		observability.RecordDBError("append_event")
		g.logger.Printf("[signalgen] decision log append failed for intent %d: %v", id, err)
	}
	if err := g.auditSink.Append(ev); err != nil {
		observability.RecordAuditError()
		g.logger.Printf("[signalgen] audit append failed for intent %d: %v", id, err)
	}

	observability.RecordIntentCreated()
	g.logger.Printf("[signalgen] CREATED %s %s score=%.2f ver=%s id=%d",
		action, symbol, score, params.Version, id)

	return interval, nil
}

// checkQuality runs the pre-insert quality gates in order and returns the
// first failing reason, or "" when the signal may be emitted.
func (g *Generator) checkQuality(symbol string, action domain.Action, score float64, now time.Time, sp config.SignalParams) string {
	if score < sp.MinConfidence {
		return SkipLowConfidence
	}

	cooldown := time.Duration(sp.DuplicateCooldownSec) * time.Second
	if last, ok := g.lastEmitted[pairKey{symbol, action}]; ok && now.Sub(last) < cooldown {
		return SkipDuplicateCooldown
	}

	window := time.Duration(sp.BurstWindowSec) * time.Second
	for len(g.creations) > 0 && now.Sub(g.creations[0]) >= window {
		g.creations = g.creations[1:]
	}
	if now.Before(g.blockedUntil) {
		return SkipBurstGuard
	}
	if sp.BurstLimit > 0 && len(g.creations) >= sp.BurstLimit {
		g.blockedUntil = now.Add(window)
		return SkipBurstGuard
	}

	return ""
}

// selectSymbol picks a symbol not emitted within the dedupe window,
// falling back to a uniform pick when every symbol is fresh.
func (g *Generator) selectSymbol(symbols []string, now time.Time, dedupeWindowSec int) string {
	window := time.Duration(dedupeWindowSec) * time.Second

	eligible := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if last, ok := g.lastSeen[s]; !ok || now.Sub(last) >= window {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		eligible = symbols
	}
	return eligible[g.rng.Intn(len(eligible))]
}

// paceInterval converts a per-minute rate into the sleep between attempts.
func paceInterval(intentsPerMin float64) time.Duration {
	if intentsPerMin < 0.1 {
		intentsPerMin = 0.1
	}
	return time.Duration(60.0 / intentsPerMin * float64(time.Second))
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
