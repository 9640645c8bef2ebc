package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParams_EmptyPathYieldsDefaults(t *testing.T) {
	params, err := LoadParams("")
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	if params.Version != "default" {
		t.Errorf("Expected default version, got %s", params.Version)
	}
	if params.Execution.MaxOrdersPerDay != 5 {
		t.Errorf("Expected default max_orders_per_day 5, got %d", params.Execution.MaxOrdersPerDay)
	}
}

func TestLoadParams_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	content := `{
		"version": "2026-01-28_01",
		"execution": {
			"poll_interval_ms": 500,
			"batch_size": 20,
			"cooldown_sec": 60,
			"max_orders_per_day": 3,
			"one_position_only": false,
			"broker_timeout_ms": 1000
		},
		"signal": {
			"signal_ttl_ms": 8000,
			"intents_per_min": 12,
			"symbols": ["000660"],
			"buy_ratio": 0.7,
			"confidence_mean": 0.7,
			"confidence_std": 0.1,
			"min_confidence": 0.65,
			"dedupe_window_sec": 5,
			"duplicate_cooldown_sec": 10,
			"burst_window_sec": 5,
			"burst_limit": 3
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	params, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	if params.Version != "2026-01-28_01" {
		t.Errorf("Expected file version, got %s", params.Version)
	}
	if params.Execution.CooldownSec != 60 {
		t.Errorf("Expected cooldown 60, got %d", params.Execution.CooldownSec)
	}
	if params.Signal.SignalTTLMs != 8000 {
		t.Errorf("Expected ttl 8000, got %d", params.Signal.SignalTTLMs)
	}
}

func TestLoadParams_MissingFileIsAnError(t *testing.T) {
	if _, err := LoadParams(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadParams_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadParams(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"empty version", func(p *Params) { p.Version = "" }},
		{"non-positive poll interval", func(p *Params) { p.Execution.PollIntervalMs = 0 }},
		{"non-positive batch size", func(p *Params) { p.Execution.BatchSize = -1 }},
		{"non-positive broker timeout", func(p *Params) { p.Execution.BrokerTimeoutMs = 0 }},
		{"buy ratio above one", func(p *Params) { p.Signal.BuyRatio = 1.5 }},
		{"no symbols", func(p *Params) { p.Signal.Symbols = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultParams()
			tc.mutate(params)
			if err := params.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("Default params should validate, got %v", err)
	}
}

func TestRequireResetConfirmation(t *testing.T) {
	env := Env{AllowReset: false}
	if err := env.RequireResetConfirmation(); err == nil {
		t.Error("Expected error without the toggle")
	}

	env.AllowReset = true
	if err := env.RequireResetConfirmation(); err != nil {
		t.Errorf("Expected confirmation with the toggle, got %v", err)
	}
}

func TestLoadEnv_ResetToggle(t *testing.T) {
	t.Setenv("ALLOW_RESET", "1")
	if !LoadEnv().AllowReset {
		t.Error("Expected ALLOW_RESET=1 to enable the toggle")
	}

	t.Setenv("ALLOW_RESET", "true")
	if LoadEnv().AllowReset {
		t.Error("Only the literal value 1 confirms a reset")
	}
}

func TestFileProvider_RereadsOnEachCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	write := func(version string) {
		t.Helper()
		content := `{"version": "` + version + `"}`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	write("v1")
	provider := FileProvider(path)
	params, err := provider()
	if err != nil {
		t.Fatalf("provider failed: %v", err)
	}
	if params.Version != "v1" {
		t.Errorf("Expected v1, got %s", params.Version)
	}

	write("v2")
	params, err = provider()
	if err != nil {
		t.Fatalf("provider failed: %v", err)
	}
	if params.Version != "v2" {
		t.Errorf("Expected v2 after rewrite, got %s", params.Version)
	}
}
