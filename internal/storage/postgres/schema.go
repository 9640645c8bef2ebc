package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"trade-intent-lab/internal/domain"
)

// createOrdersIntent defines the current orders_intent schema in full.
// Older databases created before observed_at/trade_day existed are brought
// forward by the gated column migrations below.
const createOrdersIntent = `
	CREATE TABLE IF NOT EXISTS orders_intent (
		id              BIGSERIAL PRIMARY KEY,
		created_at      TIMESTAMPTZ NOT NULL,
		observed_at     TIMESTAMPTZ NOT NULL,
		trade_day       TEXT,
		symbol          TEXT NOT NULL,
		action          TEXT NOT NULL,
		confidence      DOUBLE PRECISION NOT NULL,
		ttl_ms          BIGINT NOT NULL,
		ruleset_version TEXT NOT NULL,
		status          TEXT NOT NULL
	)
`

const createDecisionLog = `
	CREATE TABLE IF NOT EXISTS decision_log (
		id               BIGSERIAL PRIMARY KEY,
		ts               TIMESTAMPTZ NOT NULL,
		module           TEXT NOT NULL,
		event_type       TEXT NOT NULL,
		intent_id        BIGINT,
		symbol           TEXT NOT NULL,
		action           TEXT NOT NULL,
		confidence       DOUBLE PRECISION NOT NULL,
		ruleset_version  TEXT NOT NULL,
		rejection_reason TEXT,
		order_id         TEXT,
		latency_ms       DOUBLE PRECISION,
		context          JSONB,
		params_snapshot  JSONB
	)
`

// InitSchema creates tables, applies forward-only column migrations,
// backfills trade_day, and creates indexes. It is safe to call any number
// of times against any schema state: every step is gated by introspection
// or IF NOT EXISTS, and a second run produces no changes and no errors.
//
// A failing individual migration step is logged and skipped so unrelated
// steps still apply; only table creation itself is fatal.
func InitSchema(ctx context.Context, pool *Pool, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	if _, err := pool.Exec(ctx, createOrdersIntent); err != nil {
		return fmt.Errorf("create orders_intent: %w", err)
	}
	if _, err := pool.Exec(ctx, createDecisionLog); err != nil {
		return fmt.Errorf("create decision_log: %w", err)
	}

	// Forward-only column migrations. Existence is checked explicitly via
	// information_schema before altering; a duplicate-column error is never
	// used as the safety mechanism because it would mask genuine failures.
	migrations := []struct {
		table, column, definition string
	}{
		{"orders_intent", "observed_at", "TIMESTAMPTZ"},
		{"orders_intent", "trade_day", "TEXT"},
		{"decision_log", "order_id", "TEXT"},
		{"decision_log", "latency_ms", "DOUBLE PRECISION"},
	}
	for _, m := range migrations {
		if err := addColumnIfMissing(ctx, pool, m.table, m.column, m.definition, logger); err != nil {
			logger.Printf("[db] skipped %s.%s migration: %v", m.table, m.column, err)
		}
	}

	if err := backfillTradeDay(ctx, pool, logger); err != nil {
		logger.Printf("[db] skipped trade_day backfill: %v", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_orders_intent_trade_day_status_action
			ON orders_intent (trade_day, status, action)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_intent_status_id
			ON orders_intent (status, id)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_log_event_type_action_id
			ON decision_log (event_type, action, id)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_log_intent_id
			ON decision_log (intent_id)`,
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			logger.Printf("[db] skipped index creation: %v", err)
		}
	}

	return nil
}

// columnExists reports whether a column is present, via schema introspection.
func columnExists(ctx context.Context, pool *Pool, table, column string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = $1
			  AND column_name = $2
		)
	`, table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("introspect %s.%s: %w", table, column, err)
	}
	return exists, nil
}

// addColumnIfMissing adds a column only when introspection shows it absent.
func addColumnIfMissing(ctx context.Context, pool *Pool, table, column, definition string, logger *log.Logger) error {
	exists, err := columnExists(ctx, pool, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("add column: %w", err)
	}
	logger.Printf("[db] migrated: added %s column to %s", column, table)
	return nil
}

// backfillTradeDay populates trade_day for rows created before the column
// existed. The value is derived deterministically from created_at in the
// fixed trading timezone and written in a single bulk update. Daily-count
// queries depend on this column being non-null for every row.
func backfillTradeDay(ctx context.Context, pool *Pool, logger *log.Logger) error {
	var nullCount int64
	err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders_intent WHERE trade_day IS NULL",
	).Scan(&nullCount)
	if err != nil {
		return fmt.Errorf("count null trade_day: %w", err)
	}
	if nullCount == 0 {
		return nil
	}

	_, offsetSec := time.Now().In(domain.DefaultTradingZone).Zone()
	tag, err := pool.Exec(ctx, `
		UPDATE orders_intent
		SET trade_day = to_char(created_at AT TIME ZONE 'UTC' + make_interval(secs => $1), 'YYYY-MM-DD')
		WHERE trade_day IS NULL
	`, float64(offsetSec))
	if err != nil {
		return fmt.Errorf("backfill trade_day: %w", err)
	}

	logger.Printf("[db] backfilled %d NULL trade_day values from created_at", tag.RowsAffected())
	return nil
}
