package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-intent-lab/internal/broker"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/storage"
)

// State is the derived gate input for one trading day. It is mutated only
// by the single pipeline loop and is always re-derivable from the store,
// so a restart can never invent or lose admitted BUYs.
type State struct {
	TradeDay        string
	HasOpenPosition bool
	LastTradeAt     time.Time
	BuysSentToday   int
}

// RecordBuy applies the side effects of an admitted BUY. Called only after
// the status transition and decision event are durably persisted.
func (s *State) RecordBuy(now time.Time) {
	s.HasOpenPosition = true
	s.LastTradeAt = now
	s.BuysSentToday++
}

// Rebuild derives the gate state for a trading day from authoritative
// sources: the daily BUY count from the store's indexed trade_day query,
// the last trade time from the newest ADMITTED BUY decision event (falling
// back to the intent row for databases predating the decision log), and
// the open-position flag from the backend's position report.
func Rebuild(ctx context.Context, intents storage.IntentStore, events storage.DecisionLogStore, b broker.Broker, tradeDay string, loc *time.Location) (*State, error) {
	state := &State{TradeDay: tradeDay}

	buys, err := intents.CountSentBuys(ctx, tradeDay)
	if err != nil {
		return nil, fmt.Errorf("rebuild gate state: %w", err)
	}
	state.BuysSentToday = buys

	ev, err := events.LastByType(ctx, domain.EventAdmitted, domain.ActionBuy)
	switch {
	case err == nil:
		if domain.TradeDayOf(ev.Timestamp, loc) == tradeDay {
			state.LastTradeAt = ev.Timestamp
		}
	case errors.Is(err, storage.ErrNotFound):
		// No admitted BUY event on record; fall back to the intent row.
		last, err := intents.LastSentBuy(ctx, tradeDay)
		if err == nil {
			state.LastTradeAt = last.CreatedAt
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("rebuild gate state: %w", err)
		}
	default:
		return nil, fmt.Errorf("rebuild gate state: %w", err)
	}

	positions, err := b.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild gate state: %w", err)
	}
	state.HasOpenPosition = len(positions) > 0

	return state, nil
}
