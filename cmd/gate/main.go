// Package main provides the admission pipeline daemon: polls NEW order
// intents, classifies each through the gate chain, submits admitted orders
// to the broker, and records every decision in the store and the audit log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/broker"
	"trade-intent-lab/internal/config"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/gate"
	"trade-intent-lab/internal/observability"
	"trade-intent-lab/internal/pipeline"
	"trade-intent-lab/internal/storage"
	"trade-intent-lab/internal/storage/memory"
	pgstore "trade-intent-lab/internal/storage/postgres"
)

func main() {
	env := config.LoadEnv()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	paramsPath := flag.String("params", env.ParamsPath, "Strategy parameter file")
	auditDir := flag.String("audit-dir", env.AuditDir, "Audit JSONL directory")
	metricsAddr := flag.String("metrics-addr", env.MetricsAddr, "Prometheus metrics HTTP address")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	reset := flag.Bool("reset", false, "Reset today's daily counters and exit (requires ALLOW_RESET=1)")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	intents, events, cleanup, err := createStores(ctx, *postgresDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	gateSink := audit.NewWriter(*auditDir, domain.ModuleGate)

	// Administrative reset path: confirm, reset, exit. The polling loop
	// never starts on this invocation.
	if *reset {
		if err := env.RequireResetConfirmation(); err != nil {
			logger.Fatalf("Reset refused: %v", err)
		}
		affected, err := pipeline.ResetDailyCounters(ctx, intents, events, gateSink, domain.DefaultTradingZone, logger)
		if err != nil {
			logger.Fatalf("Reset failed: %v", err)
		}
		fmt.Printf("Reset complete: %d orders marked PROCESSED\n", affected)
		return
	}

	paramsProvider := config.FileProvider(*paramsPath)
	params, err := paramsProvider()
	if err != nil {
		logger.Fatalf("Failed to load strategy params: %v", err)
	}
	logger.Printf("[gate] params loaded (version=%s, max_orders_per_day=%d, cooldown_sec=%d)",
		params.Version, params.Execution.MaxOrdersPerDay, params.Execution.CooldownSec)

	// Broker acknowledgments flow into the decision log and their own audit
	// file through handles independent of the pipeline's in-flight work.
	brokerSink := audit.NewWriter(*auditDir, domain.ModuleBroker)
	mock := broker.NewMock(broker.WithAck(func(symbol string, action domain.Action, orderID string, ok bool, reason string) {
		recordAck(events, brokerSink, logger, symbol, action, orderID, ok, reason)
	}))

	timeout := time.Duration(params.Execution.BrokerTimeoutMs) * time.Millisecond
	evaluator := gate.NewEvaluator(mock, timeout)

	tradeDay := domain.TradeDayOf(time.Now(), domain.DefaultTradingZone)
	state, err := gate.Rebuild(ctx, intents, events, mock, tradeDay, domain.DefaultTradingZone)
	if err != nil {
		logger.Fatalf("Failed to rebuild gate state: %v", err)
	}
	logger.Printf("[gate] state rebuilt (trade_day=%s, buys_today=%d, open_position=%v)",
		state.TradeDay, state.BuysSentToday, state.HasOpenPosition)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	go startHTTPServer(*metricsAddr, logger)

	runner := pipeline.NewRunner(pipeline.Options{
		IntentStore: intents,
		Evaluator:   evaluator,
		AuditSink:   gateSink,
		Params:      paramsProvider,
		State:       state,
		TradingZone: domain.DefaultTradingZone,
		Logger:      logger,
	})

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Pipeline error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates the intent and decision-log stores.
func createStores(ctx context.Context, dsn string, useMemory bool, logger *log.Logger) (storage.IntentStore, storage.DecisionLogStore, func(), error) {
	if useMemory {
		events := memory.NewDecisionLogStore()
		return memory.NewIntentStore(events), events, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pgstore.InitSchema(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("init schema: %w", err)
	}

	return pgstore.NewIntentStore(pool), pgstore.NewDecisionLogStore(pool), pool.Close, nil
}

// recordAck appends a broker acknowledgment to the decision log and the
// broker audit file. Failures are logged; an ack is observability, never
// a reason to fail the order that produced it.
func recordAck(events storage.DecisionLogStore, sink *audit.Writer, logger *log.Logger, symbol string, action domain.Action, orderID string, ok bool, reason string) {
	eventType := domain.EventBrokerAck
	if !ok {
		eventType = domain.EventBrokerNack
	}

	ev := &domain.DecisionEvent{
		Timestamp:      time.Now(),
		SourceModule:   domain.ModuleBroker,
		EventType:      eventType,
		Symbol:         symbol,
		Action:         action,
		RulesetVersion: "SYSTEM",
		OrderID:        orderID,
	}
	if reason != "" {
		ev.Context = map[string]any{"reason": reason}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := events.Append(ctx, ev); err != nil {
		observability.RecordDBError("append_ack")
		logger.Printf("[broker] ack append failed for order %s: %v", orderID, err)
	}
	if err := sink.Append(ev); err != nil {
		observability.RecordAuditError()
		logger.Printf("[broker] audit append failed for order %s: %v", orderID, err)
	}
}

// startHTTPServer serves health and Prometheus metrics.
func startHTTPServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}
