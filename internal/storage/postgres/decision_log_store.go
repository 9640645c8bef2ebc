package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/storage"
)

// DecisionLogStore implements storage.DecisionLogStore using PostgreSQL.
type DecisionLogStore struct {
	pool *Pool
}

// NewDecisionLogStore creates a new DecisionLogStore.
func NewDecisionLogStore(pool *Pool) *DecisionLogStore {
	return &DecisionLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionLogStore = (*DecisionLogStore)(nil)

const eventColumns = `
	id, ts, module, event_type, intent_id, symbol, action, confidence,
	ruleset_version, rejection_reason, order_id, latency_ms, context, params_snapshot
`

const insertEventQuery = `
	INSERT INTO decision_log (
		ts, module, event_type, intent_id, symbol, action, confidence,
		ruleset_version, rejection_reason, order_id, latency_ms, context, params_snapshot
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id
`

// Append adds a decision event and fills in its assigned id.
func (s *DecisionLogStore) Append(ctx context.Context, ev *domain.DecisionEvent) error {
	args, err := eventInsertArgs(ev)
	if err != nil {
		return err
	}

	if err := s.pool.QueryRow(ctx, insertEventQuery, args...).Scan(&ev.ID); err != nil {
		return fmt.Errorf("append decision event: %w", err)
	}
	return nil
}

// appendEventTx inserts an event inside an existing transaction. The
// admission pipeline uses it to make the status transition and the event
// append a single logical operation.
func appendEventTx(ctx context.Context, tx pgx.Tx, ev *domain.DecisionEvent) error {
	args, err := eventInsertArgs(ev)
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, insertEventQuery, args...).Scan(&ev.ID); err != nil {
		return fmt.Errorf("append decision event in tx: %w", err)
	}
	return nil
}

// GetByIntentID retrieves all events recorded for an intent, oldest first.
func (s *DecisionLogStore) GetByIntentID(ctx context.Context, intentID int64) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM decision_log
		WHERE intent_id = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, intentID)
	if err != nil {
		return nil, fmt.Errorf("get events by intent id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastByType retrieves the newest event with the given type and action.
func (s *DecisionLogStore) LastByType(ctx context.Context, eventType domain.EventType, action domain.Action) (*domain.DecisionEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM decision_log
		WHERE event_type = $1 AND action = $2
		ORDER BY id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, eventType, action)
	ev, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get last event by type: %w", err)
	}
	return ev, nil
}

// CountByType returns the number of events with the given type.
func (s *DecisionLogStore) CountByType(ctx context.Context, eventType domain.EventType) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM decision_log WHERE event_type = $1", eventType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events by type: %w", err)
	}
	return count, nil
}

// eventInsertArgs validates an event and builds the insert argument list.
func eventInsertArgs(ev *domain.DecisionEvent) ([]any, error) {
	if ev == nil || ev.SourceModule == "" || ev.EventType == "" || ev.Timestamp.IsZero() {
		return nil, storage.ErrInvalidInput
	}

	var contextJSON, paramsJSON []byte
	var err error
	if len(ev.Context) > 0 {
		contextJSON, err = json.Marshal(ev.Context)
		if err != nil {
			return nil, fmt.Errorf("marshal event context: %w", err)
		}
	}
	if ev.Params != nil {
		paramsJSON, err = json.Marshal(ev.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal params snapshot: %w", err)
		}
	}

	return []any{
		ev.Timestamp, ev.SourceModule, ev.EventType, nullIfZero(ev.IntentID),
		ev.Symbol, ev.Action, ev.Confidence, ev.RulesetVersion,
		nullIfEmpty(ev.RejectionReason), nullIfEmpty(ev.OrderID),
		ev.LatencyMs, contextJSON, paramsJSON,
	}, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

// scanEvent scans a single row into a DecisionEvent.
func scanEvent(row pgx.Row) (*domain.DecisionEvent, error) {
	var ev domain.DecisionEvent
	var intentID *int64
	var reason, orderID *string
	var contextJSON, paramsJSON []byte

	err := row.Scan(
		&ev.ID, &ev.Timestamp, &ev.SourceModule, &ev.EventType, &intentID,
		&ev.Symbol, &ev.Action, &ev.Confidence, &ev.RulesetVersion,
		&reason, &orderID, &ev.LatencyMs, &contextJSON, &paramsJSON,
	)
	if err != nil {
		return nil, err
	}

	if intentID != nil {
		ev.IntentID = *intentID
	}
	if reason != nil {
		ev.RejectionReason = *reason
	}
	if orderID != nil {
		ev.OrderID = *orderID
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &ev.Context); err != nil {
			return nil, fmt.Errorf("unmarshal event context: %w", err)
		}
	}
	if len(paramsJSON) > 0 {
		ev.Params = &domain.ParamsSnapshot{}
		if err := json.Unmarshal(paramsJSON, ev.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params snapshot: %w", err)
		}
	}

	return &ev, nil
}

// scanEvents scans multiple rows into a slice of DecisionEvent.
func scanEvents(rows pgx.Rows) ([]*domain.DecisionEvent, error) {
	var events []*domain.DecisionEvent

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision event row: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision event rows: %w", err)
	}

	return events, nil
}
