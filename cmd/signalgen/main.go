// Package main provides the synthetic signal source daemon: generates
// Gaussian-scored order intents, filters them through the source-side
// quality gates, and inserts the survivors as NEW rows for the admission
// pipeline to decide on.
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

	"trade-intent-lab/internal/audit"
	"trade-intent-lab/internal/config"
	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/observability"
	"trade-intent-lab/internal/signalgen"
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
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	seed := flag.Int64("seed", 0, "Random seed (0 seeds from the wall clock)")
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

	paramsProvider := config.FileProvider(*paramsPath)
	params, err := paramsProvider()
	if err != nil {
		logger.Fatalf("Failed to load strategy params: %v", err)
	}
	logger.Printf("[signalgen] params loaded (version=%s, intents_per_min=%.1f, symbols=%v)",
		params.Version, params.Signal.IntentsPerMin, params.Signal.Symbols)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	go startHTTPServer(*metricsAddr, logger)

	gen := signalgen.NewGenerator(signalgen.Options{
		IntentStore: intents,
		EventStore:  events,
		AuditSink:   audit.NewWriter(*auditDir, domain.ModuleSignal),
		Params:      paramsProvider,
		TradingZone: domain.DefaultTradingZone,
		Logger:      logger,
		Seed:        *seed,
	})

	if err := gen.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Signal source error: %v", err)
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
