package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/observability"
	"trade-intent-lab/internal/storage"
)

// ResetDailyCounters zeroes the daily BUY count for the current trading day
// by transitioning every SENT BUY intent to PROCESSED, and records a
// COUNTER_RESET event in the decision log and the audit sink. Returns the
// number of intents affected.
//
// Callers must enforce the out-of-band confirmation toggle before invoking
// this; it is never part of the normal request flow.
func ResetDailyCounters(ctx context.Context, intents storage.IntentStore, events storage.DecisionLogStore, sink *audit.Writer, loc *time.Location, logger *log.Logger) (int64, error) {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = domain.DefaultTradingZone
	}

	now := time.Now()
	tradeDay := domain.TradeDayOf(now, loc)

	affected, err := intents.MarkProcessed(ctx, tradeDay)
	if err != nil {
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}

	ev := &domain.DecisionEvent{
		Timestamp:      now,
		SourceModule:   domain.ModuleGate,
		EventType:      domain.EventCounterReset,
		Symbol:         "N/A",
		Action:         domain.Action("N/A"),
		RulesetVersion: "SYSTEM",
		Context: map[string]any{
			"records_affected": affected,
			"trade_day":        tradeDay,
		},
	}
	if err := events.Append(ctx, ev); err != nil {
		return affected, fmt.Errorf("record counter reset: %w", err)
	}
	if sink != nil {
		if err := sink.Append(ev); err != nil {
			observability.RecordAuditError()
			logger.Printf("[gate] audit append failed for counter reset: %v", err)
		}
	}

	observability.RecordCounterReset()
	logger.Printf("[gate] reset: %d BUY orders marked PROCESSED (trade_day=%s)", affected, tradeDay)
	return affected, nil
}
