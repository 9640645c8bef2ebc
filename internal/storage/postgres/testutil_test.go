package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"trade-intent-lab/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and initializes the
// schema. Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, InitSchema(ctx, pool, nil), "failed to initialize schema")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// testIntent builds a valid intent for the given trade day.
func testIntent(tradeDay string) *domain.OrderIntent {
	createdAt := time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC)
	return &domain.OrderIntent{
		CreatedAt:      createdAt,
		ObservedAt:     createdAt,
		TradeDay:       tradeDay,
		Symbol:         "005930",
		Action:         domain.ActionBuy,
		Confidence:     0.72,
		TTLMs:          5000,
		RulesetVersion: "2026-01-28_01",
	}
}

// testEvent builds a valid decision event pointing at an intent.
func testEvent(intentID int64, eventType domain.EventType) *domain.DecisionEvent {
	return &domain.DecisionEvent{
		Timestamp:      time.Date(2026, 1, 28, 9, 30, 1, 0, time.UTC),
		SourceModule:   domain.ModuleGate,
		EventType:      eventType,
		IntentID:       intentID,
		Symbol:         "005930",
		Action:         domain.ActionBuy,
		Confidence:     0.72,
		RulesetVersion: "2026-01-28_01",
	}
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
