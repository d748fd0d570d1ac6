// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the offline core's
// settings: database path, logging, the abandonment threshold, retry/backoff
// policy, queue priorities, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the offline core.
type Config struct {
	// App
	DBPath string // SQLite path

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Drafts
	AbandonThreshold time.Duration // idle time after which a draft counts as abandoned

	// Sync queue
	MaxRetry          int           // terminal-failure retry ceiling
	BackoffBase       time.Duration // first retry delay
	BackoffCap        time.Duration // maximum retry delay
	DefaultPriority   int           // queue weight when no override matches
	PriorityOverrides map[int]int   // serviceID -> weight, for latency-sensitive services
	ReplayBatchLimit  int           // max events replayed per drain

	// Drain triggering (mutations auto-trigger a drain; this bounds the rate)
	DrainRPS   float64 // drain triggers per second (>= 0)
	DrainBurst int     // burst size (>= 1)

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// App
		DBPath: getenv("DB_PATH", "uzhavan.db"),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Drafts
		AbandonThreshold: getdur("ABANDON_THRESHOLD", 30*time.Minute),

		// Sync queue
		MaxRetry:          getint("MAX_RETRY", 5),
		BackoffBase:       getdur("BACKOFF_BASE", 30*time.Second),
		BackoffCap:        getdur("BACKOFF_CAP", 15*time.Minute),
		DefaultPriority:   getint("DEFAULT_PRIORITY", 50),
		PriorityOverrides: parseOverrides(getenv("PRIORITY_OVERRIDES", "")),
		ReplayBatchLimit:  getint("REPLAY_BATCH_LIMIT", 200),

		// Drain triggering
		DrainRPS:   getfloat("DRAIN_RPS", 1.0),
		DrainBurst: getint("DRAIN_BURST", 1),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "uzhavan-offline-core"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.AbandonThreshold <= 0 {
		return cfg, errors.New("ABANDON_THRESHOLD must be a positive duration")
	}
	if cfg.MaxRetry < 1 {
		return cfg, errors.New("MAX_RETRY must be >= 1")
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffCap <= 0 {
		return cfg, errors.New("backoff durations must be positive")
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		return cfg, errors.New("BACKOFF_CAP must be >= BACKOFF_BASE")
	}
	if cfg.DefaultPriority < 0 {
		return cfg, errors.New("DEFAULT_PRIORITY must be >= 0")
	}
	if cfg.ReplayBatchLimit < 1 {
		return cfg, errors.New("REPLAY_BATCH_LIMIT must be >= 1")
	}
	if cfg.DrainRPS < 0 {
		return cfg, errors.New("DRAIN_RPS must be >= 0")
	}
	if cfg.DrainBurst < 1 {
		return cfg, errors.New("DRAIN_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// PriorityFor resolves the queue weight for a service, falling back to the
// default weight when no override is configured.
func (c Config) PriorityFor(serviceID int) int {
	if w, ok := c.PriorityOverrides[serviceID]; ok {
		return w
	}
	return c.DefaultPriority
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parseOverrides parses a CSV of serviceID:weight pairs, e.g. "12:90,31:80".
// Malformed pairs are skipped.
func parseOverrides(s string) map[int]int {
	out := map[int]int{}
	if s == "" {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			continue
		}
		id, err1 := strconv.Atoi(strings.TrimSpace(kv[0]))
		w, err2 := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err1 != nil || err2 != nil || w < 0 {
			continue
		}
		out[id] = w
	}
	return out
}
