package config

import (
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so defaults apply regardless of
// the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_PATH", "LOG_LEVEL", "LOG_PRETTY",
		"ABANDON_THRESHOLD",
		"MAX_RETRY", "BACKOFF_BASE", "BACKOFF_CAP",
		"DEFAULT_PRIORITY", "PRIORITY_OVERRIDES", "REPLAY_BATCH_LIMIT",
		"DRAIN_RPS", "DRAIN_BURST",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "uzhavan.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.AbandonThreshold != 30*time.Minute {
		t.Errorf("AbandonThreshold = %v", cfg.AbandonThreshold)
	}
	if cfg.MaxRetry != 5 {
		t.Errorf("MaxRetry = %d", cfg.MaxRetry)
	}
	if cfg.BackoffBase != 30*time.Second || cfg.BackoffCap != 15*time.Minute {
		t.Errorf("backoff = %v / %v", cfg.BackoffBase, cfg.BackoffCap)
	}
	if cfg.DefaultPriority != 50 {
		t.Errorf("DefaultPriority = %d", cfg.DefaultPriority)
	}
	if cfg.ReplayBatchLimit != 200 {
		t.Errorf("ReplayBatchLimit = %d", cfg.ReplayBatchLimit)
	}
	if cfg.OTEL.Enabled {
		t.Errorf("OTEL enabled by default")
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "/tmp/core.db")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("ABANDON_THRESHOLD", "45m")
	t.Setenv("MAX_RETRY", "3")
	t.Setenv("PRIORITY_OVERRIDES", "12:90, 31:80,garbage,x:y,7:-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "/tmp/core.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected 'warning' normalized to 'warn', got %q", cfg.LogLevel)
	}
	if cfg.AbandonThreshold != 45*time.Minute {
		t.Errorf("AbandonThreshold = %v", cfg.AbandonThreshold)
	}
	if cfg.MaxRetry != 3 {
		t.Errorf("MaxRetry = %d", cfg.MaxRetry)
	}

	if len(cfg.PriorityOverrides) != 2 {
		t.Fatalf("expected 2 valid overrides, got %v", cfg.PriorityOverrides)
	}
	if cfg.PriorityFor(12) != 90 || cfg.PriorityFor(31) != 80 {
		t.Errorf("override weights wrong: %v", cfg.PriorityOverrides)
	}
	if cfg.PriorityFor(99) != cfg.DefaultPriority {
		t.Errorf("fallback weight = %d", cfg.PriorityFor(99))
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero retries", "MAX_RETRY", "0"},
		{"cap below base", "BACKOFF_CAP", "1s"},
		{"negative priority", "DEFAULT_PRIORITY", "-1"},
		{"zero replay batch", "REPLAY_BATCH_LIMIT", "0"},
		{"negative drain rps", "DRAIN_RPS", "-1"},
		{"zero drain burst", "DRAIN_BURST", "0"},
		{"sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.key, tc.value)
			}
		})
	}
}
