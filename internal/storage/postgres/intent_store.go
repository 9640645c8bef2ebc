package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/storage"
)

// IntentStore implements storage.IntentStore using PostgreSQL.
type IntentStore struct {
	pool *Pool
}

// NewIntentStore creates a new IntentStore.
func NewIntentStore(pool *Pool) *IntentStore {
	return &IntentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IntentStore = (*IntentStore)(nil)

const intentColumns = `
	id, created_at, observed_at, trade_day, symbol, action,
	confidence, ttl_ms, ruleset_version, status
`

// Insert adds a new intent with status NEW and returns the assigned id.
func (s *IntentStore) Insert(ctx context.Context, intent *domain.OrderIntent) (int64, error) {
	if err := validateIntent(intent); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO orders_intent (
			created_at, observed_at, trade_day, symbol, action,
			confidence, ttl_ms, ruleset_version, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		intent.CreatedAt, intent.ObservedAt, intent.TradeDay,
		intent.Symbol, intent.Action, intent.Confidence,
		intent.TTLMs, intent.RulesetVersion, domain.StatusNew,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order intent: %w", err)
	}

	intent.ID = id
	intent.Status = domain.StatusNew
	return id, nil
}

// GetByID retrieves an intent by its id. Returns ErrNotFound if not exists.
func (s *IntentStore) GetByID(ctx context.Context, id int64) (*domain.OrderIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM orders_intent WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	intent, err := scanIntent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get intent by id: %w", err)
	}
	return intent, nil
}

// NextBatch retrieves up to limit NEW intents in creation order (id ASC).
// The (status, id) index keeps this scan cheap as terminal rows accumulate.
func (s *IntentStore) NextBatch(ctx context.Context, limit int) ([]*domain.OrderIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM orders_intent
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, domain.StatusNew, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch next intent batch: %w", err)
	}
	defer rows.Close()

	return scanIntents(rows)
}

// Decide transitions a NEW intent to a terminal status and appends the
// matching decision event in the same transaction. The conditional update
// on status = NEW makes the transition exactly-once: a replayed decision
// affects zero rows and surfaces as ErrAlreadyDecided before the event is
// written, so neither table double-counts.
func (s *IntentStore) Decide(ctx context.Context, id int64, status domain.Status, ev *domain.DecisionEvent) error {
	if status != domain.StatusSent && status != domain.StatusRejected {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"UPDATE orders_intent SET status = $2 WHERE id = $1 AND status = $3",
		id, status, domain.StatusNew,
	)
	if err != nil {
		return fmt.Errorf("transition intent %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var current domain.Status
		err := tx.QueryRow(ctx, "SELECT status FROM orders_intent WHERE id = $1", id).Scan(&current)
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check intent %d status: %w", id, err)
		}
		return storage.ErrAlreadyDecided
	}

	if ev != nil {
		if err := appendEventTx(ctx, tx, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit decision for intent %d: %w", id, err)
	}
	return nil
}

// CountSentBuys returns the number of SENT BUY intents for a trading day.
// Queries the immutable trade_day column, never a timestamp substring, so
// the count stays stable across timezone or formatting changes.
func (s *IntentStore) CountSentBuys(ctx context.Context, tradeDay string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders_intent
		WHERE status = $1 AND action = $2 AND trade_day = $3
	`, domain.StatusSent, domain.ActionBuy, tradeDay).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent buys: %w", err)
	}
	return count, nil
}

// LastSentBuy retrieves the newest SENT BUY intent for a trading day.
func (s *IntentStore) LastSentBuy(ctx context.Context, tradeDay string) (*domain.OrderIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM orders_intent
		WHERE status = $1 AND action = $2 AND trade_day = $3
		ORDER BY id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, domain.StatusSent, domain.ActionBuy, tradeDay)
	intent, err := scanIntent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get last sent buy: %w", err)
	}
	return intent, nil
}

// MarkProcessed transitions every SENT BUY intent for a trading day to
// PROCESSED. Only the administrative counter reset calls this.
func (s *IntentStore) MarkProcessed(ctx context.Context, tradeDay string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders_intent SET status = $1
		WHERE status = $2 AND action = $3 AND trade_day = $4
	`, domain.StatusProcessed, domain.StatusSent, domain.ActionBuy, tradeDay)
	if err != nil {
		return 0, fmt.Errorf("mark processed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// validateIntent rejects partial rows before they reach the table.
func validateIntent(intent *domain.OrderIntent) error {
	if intent == nil ||
		intent.Symbol == "" ||
		intent.TradeDay == "" ||
		intent.RulesetVersion == "" ||
		intent.CreatedAt.IsZero() ||
		intent.ObservedAt.IsZero() ||
		(intent.Action != domain.ActionBuy && intent.Action != domain.ActionSell) ||
		intent.Confidence < 0 || intent.Confidence > 1 {
		return storage.ErrInvalidInput
	}
	return nil
}

// scanIntent scans a single row into an OrderIntent.
func scanIntent(row pgx.Row) (*domain.OrderIntent, error) {
	var i domain.OrderIntent

	err := row.Scan(
		&i.ID, &i.CreatedAt, &i.ObservedAt, &i.TradeDay, &i.Symbol, &i.Action,
		&i.Confidence, &i.TTLMs, &i.RulesetVersion, &i.Status,
	)
	if err != nil {
		return nil, err
	}

	return &i, nil
}

// scanIntents scans multiple rows into a slice of OrderIntent.
func scanIntents(rows pgx.Rows) ([]*domain.OrderIntent, error) {
	var intents []*domain.OrderIntent

	for rows.Next() {
		var i domain.OrderIntent

		err := rows.Scan(
			&i.ID, &i.CreatedAt, &i.ObservedAt, &i.TradeDay, &i.Symbol, &i.Action,
			&i.Confidence, &i.TTLMs, &i.RulesetVersion, &i.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan intent row: %w", err)
		}

		intents = append(intents, &i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intent rows: %w", err)
	}

	return intents, nil
}
