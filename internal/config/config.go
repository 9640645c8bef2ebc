// Package config loads environment settings and the strategy-parameter
// file shared by the signal source and the admission pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Env holds process-level settings sourced from the environment.
type Env struct {
	PostgresDSN string
	ParamsPath  string
	AuditDir    string
	MetricsAddr string
	AllowReset  bool
}

// LoadEnv reads a .env file if present, then the environment.
func LoadEnv() Env {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	return Env{
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		ParamsPath:  getEnvDefault("STRATEGY_PARAMS_PATH", "config/strategy_params.json"),
		AuditDir:    getEnvDefault("AUDIT_DIR", "logs"),
		MetricsAddr: getEnvDefault("METRICS_ADDR", ":9090"),
		AllowReset:  os.Getenv("ALLOW_RESET") == "1",
	}
}

// RequireResetConfirmation enforces the out-of-band confirmation for the
// administrative counter reset. Absence of the toggle is a hard failure,
// never a silent no-op.
func (e Env) RequireResetConfirmation() error {
	if !e.AllowReset {
		return fmt.Errorf("reset requires ALLOW_RESET=1 in the environment")
	}
	return nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ExecutionParams tune the admission pipeline.
type ExecutionParams struct {
	PollIntervalMs  int  `json:"poll_interval_ms"`
	BatchSize       int  `json:"batch_size"`
	CooldownSec     int  `json:"cooldown_sec"`
	MaxOrdersPerDay int  `json:"max_orders_per_day"`
	OnePositionOnly bool `json:"one_position_only"`
	BrokerTimeoutMs int  `json:"broker_timeout_ms"`
}

// SignalParams tune the synthetic signal source.
type SignalParams struct {
	SignalTTLMs          int64    `json:"signal_ttl_ms"`
	IntentsPerMin        float64  `json:"intents_per_min"`
	Symbols              []string `json:"symbols"`
	BuyRatio             float64  `json:"buy_ratio"`
	ConfidenceMean       float64  `json:"confidence_mean"`
	ConfidenceStd        float64  `json:"confidence_std"`
	MinConfidence        float64  `json:"min_confidence"`
	DedupeWindowSec      int      `json:"dedupe_window_sec"`
	DuplicateCooldownSec int      `json:"duplicate_cooldown_sec"`
	BurstWindowSec       int      `json:"burst_window_sec"`
	BurstLimit           int      `json:"burst_limit"`
}

// Params is the strategy-parameter file. The pipeline re-reads it every
// tick so threshold changes apply without a restart, and stamps Version
// onto every intent and decision for traceability.
type Params struct {
	Version   string          `json:"version"`
	Execution ExecutionParams `json:"execution"`
	Signal    SignalParams    `json:"signal"`
}

// DefaultParams returns the built-in parameter set.
func DefaultParams() *Params {
	return &Params{
		Version: "default",
		Execution: ExecutionParams{
			PollIntervalMs:  1000,
			BatchSize:       10,
			CooldownSec:     30,
			MaxOrdersPerDay: 5,
			OnePositionOnly: true,
			BrokerTimeoutMs: 3000,
		},
		Signal: SignalParams{
			SignalTTLMs:          5000,
			IntentsPerMin:        6,
			Symbols:              []string{"005930"},
			BuyRatio:             0.5,
			ConfidenceMean:       0.685,
			ConfidenceStd:        0.05,
			MinConfidence:        0.62,
			DedupeWindowSec:      5,
			DuplicateCooldownSec: 10,
			BurstWindowSec:       5,
			BurstLimit:           3,
		},
	}
}

// LoadParams reads the strategy-parameter file. An empty path yields the
// defaults; an unreadable or malformed file is an error, never a silent
// fallback.
func LoadParams(path string) (*Params, error) {
	if path == "" {
		return DefaultParams(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy params: %w", err)
	}

	params := DefaultParams()
	if err := json.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("parse strategy params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Validate rejects parameter sets the pipeline cannot run with.
func (p *Params) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("strategy params: version is required")
	}
	if p.Execution.PollIntervalMs <= 0 {
		return fmt.Errorf("strategy params: poll_interval_ms must be positive")
	}
	if p.Execution.BatchSize <= 0 {
		return fmt.Errorf("strategy params: batch_size must be positive")
	}
	if p.Execution.BrokerTimeoutMs <= 0 {
		return fmt.Errorf("strategy params: broker_timeout_ms must be positive")
	}
	if p.Signal.BuyRatio < 0 || p.Signal.BuyRatio > 1 {
		return fmt.Errorf("strategy params: buy_ratio must be in [0,1]")
	}
	if len(p.Signal.Symbols) == 0 {
		return fmt.Errorf("strategy params: symbols must not be empty")
	}
	return nil
}

// Provider supplies the current parameter set. The pipeline and the signal
// source call it once per tick.
type Provider func() (*Params, error)

// FileProvider returns a Provider that re-reads the given file on each call.
func FileProvider(path string) Provider {
	return func() (*Params, error) {
		return LoadParams(path)
	}
}

// StaticProvider returns a Provider that always yields the same parameters.
func StaticProvider(params *Params) Provider {
	return func() (*Params, error) {
		return params, nil
	}
}
