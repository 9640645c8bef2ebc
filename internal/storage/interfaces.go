package storage

import (
	"context"

	"trade-intent-lab/internal/domain"
)

// IntentStore provides access to orders_intent storage.
type IntentStore interface {
	// Insert adds a new intent with status NEW and returns the assigned id.
	// All immutable NOT NULL fields must be populated; partial rows are
	// rejected with ErrInvalidInput.
	Insert(ctx context.Context, intent *domain.OrderIntent) (int64, error)

	// GetByID retrieves an intent by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.OrderIntent, error)

	// NextBatch retrieves up to limit NEW intents in creation order (id ASC).
	NextBatch(ctx context.Context, limit int) ([]*domain.OrderIntent, error)

	// Decide transitions a NEW intent to a terminal status and appends the
	// matching decision event in the same transaction. No observer sees one
	// without the other. Returns ErrAlreadyDecided when the intent has
	// already left NEW (replay) and ErrNotFound when it does not exist.
	Decide(ctx context.Context, id int64, status domain.Status, ev *domain.DecisionEvent) error

	// CountSentBuys returns the number of SENT BUY intents for a trading
	// day, via the immutable trade_day column.
	CountSentBuys(ctx context.Context, tradeDay string) (int, error)

	// LastSentBuy retrieves the newest SENT BUY intent for a trading day.
	// Returns ErrNotFound when none was admitted that day.
	LastSentBuy(ctx context.Context, tradeDay string) (*domain.OrderIntent, error)

	// MarkProcessed transitions every SENT BUY intent for a trading day to
	// PROCESSED and returns the number of rows affected. Used only by the
	// administrative counter reset.
	MarkProcessed(ctx context.Context, tradeDay string) (int64, error)
}

// DecisionLogStore provides access to decision_log storage.
// The log is append-only: entries are never updated or deleted.
type DecisionLogStore interface {
	// Append adds a decision event and fills in its assigned id.
	Append(ctx context.Context, ev *domain.DecisionEvent) error

	// GetByIntentID retrieves all events recorded for an intent, oldest first.
	GetByIntentID(ctx context.Context, intentID int64) ([]*domain.DecisionEvent, error)

	// LastByType retrieves the newest event with the given type and action.
	// Returns ErrNotFound when no such event exists.
	LastByType(ctx context.Context, eventType domain.EventType, action domain.Action) (*domain.DecisionEvent, error)

	// CountByType returns the number of events with the given type.
	CountByType(ctx context.Context, eventType domain.EventType) (int, error)
}
