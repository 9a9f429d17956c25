package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Feature: minibroker, Property: configuration parsing

var validLogLevels = []string{"debug", "info", "warn", "error"}

// durationEnvKeys lists every variable parsed as a time.Duration, with its
// default.
var durationEnvKeys = []string{
	"READ_TIMEOUT",
	"WRITE_TIMEOUT",
	"IDLE_TIMEOUT",
	"SHUTDOWN_TIMEOUT",
	"REQUEST_TIMEOUT",
}

var durationDefaults = map[string]time.Duration{
	"READ_TIMEOUT":     5 * time.Second,
	"WRITE_TIMEOUT":    10 * time.Second,
	"IDLE_TIMEOUT":     60 * time.Second,
	"SHUTDOWN_TIMEOUT": 10 * time.Second,
	"REQUEST_TIMEOUT":  5 * time.Second,
}

// allEnvKeys is every config-related env var key.
var allEnvKeys = append([]string{
	"PORT", "LOG_LEVEL", "STORE", "DATABASE_URL", "DATABASE_HOST",
	"DATABASE_PORT", "DATABASE_USER", "DATABASE_PASS", "DATABASE_NAME",
	"DATABASE_SSL", "DB_MAX_CONNS", "DB_TX_RETRIES", "SETTLEMENT_TICKER",
	"SEED_FILE", "CORS_ALLOWED_ORIGINS",
}, durationEnvKeys...)

// unsetAllConfigEnv clears all config env vars and points ENV_FILE at a
// file that does not exist.
func unsetAllConfigEnv() {
	for _, key := range allEnvKeys {
		os.Unsetenv(key)
	}
	os.Setenv("ENV_FILE", "testdata/does-not-exist.env")
}

func durationOf(env map[string]string, key string) time.Duration {
	if v := env[key]; v != "" {
		d, _ := time.ParseDuration(v)
		return d
	}
	return durationDefaults[key]
}

func TestProperty_ValidConfigParsing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		// Empty means the variable is left unset.
		env := map[string]string{
			"PORT": rapid.OneOf(
				rapid.Just(""),
				rapid.Map(rapid.IntRange(1, 65535), strconv.Itoa),
			).Draw(t, "port"),
			"LOG_LEVEL": rapid.OneOf(rapid.Just(""), rapid.SampledFrom(validLogLevels)).Draw(t, "logLevel"),
			"DB_MAX_CONNS": rapid.OneOf(
				rapid.Just(""),
				rapid.Map(rapid.IntRange(1, 200), strconv.Itoa),
			).Draw(t, "maxConns"),
			"DB_TX_RETRIES": rapid.OneOf(
				rapid.Just(""),
				rapid.Map(rapid.IntRange(0, 10), strconv.Itoa),
			).Draw(t, "txRetries"),
			"SETTLEMENT_TICKER": rapid.OneOf(rapid.Just(""), rapid.StringMatching(`[a-zA-Z]{3}`)).Draw(t, "ticker"),
		}
		if rapid.Bool().Draw(t, "postgres") {
			env["STORE"] = StorePostgres
			env["DATABASE_URL"] = "postgres://broker@localhost:5432/broker"
		}
		for _, key := range durationEnvKeys {
			env[key] = rapid.OneOf(rapid.Just(""), genDurationString()).Draw(t, key)
		}
		origins := rapid.SliceOfN(rapid.StringMatching(`https?://[a-z]{1,8}\.example(:[0-9]{2,4})?`), 0, 4).Draw(t, "origins")
		env["CORS_ALLOWED_ORIGINS"] = strings.Join(origins, ",")

		for k, v := range env {
			if v != "" {
				os.Setenv(k, v)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs %v: %v", env, err)
		}

		wantInt := func(key string, def int) int {
			if v := env[key]; v != "" {
				n, _ := strconv.Atoi(v)
				return n
			}
			return def
		}
		if got, want := cfg.Port, wantInt("PORT", 8080); got != want {
			t.Fatalf("Port = %d, want %d", got, want)
		}
		if got, want := cfg.DBMaxConns, wantInt("DB_MAX_CONNS", 10); got != want {
			t.Fatalf("DBMaxConns = %d, want %d", got, want)
		}
		if got, want := cfg.DBTxRetries, wantInt("DB_TX_RETRIES", 3); got != want {
			t.Fatalf("DBTxRetries = %d, want %d", got, want)
		}

		wantLevel := "info"
		if env["LOG_LEVEL"] != "" {
			wantLevel = env["LOG_LEVEL"]
		}
		if cfg.LogLevel != wantLevel {
			t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, wantLevel)
		}

		wantTicker := "ARS"
		if env["SETTLEMENT_TICKER"] != "" {
			wantTicker = strings.ToUpper(env["SETTLEMENT_TICKER"])
		}
		if cfg.SettlementTicker != wantTicker {
			t.Fatalf("SettlementTicker = %q, want %q", cfg.SettlementTicker, wantTicker)
		}

		wantStore := StoreMemory
		if env["STORE"] != "" {
			wantStore = env["STORE"]
		}
		if cfg.Store != wantStore || cfg.DatabaseURL != env["DATABASE_URL"] {
			t.Fatalf("Store, DatabaseURL = %q, %q", cfg.Store, cfg.DatabaseURL)
		}

		if len(cfg.CORSAllowedOrigins) != len(origins) {
			t.Fatalf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, origins)
		}
		for i := range origins {
			if cfg.CORSAllowedOrigins[i] != origins[i] {
				t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origins[i])
			}
		}

		got := map[string]time.Duration{
			"READ_TIMEOUT":     cfg.ReadTimeout,
			"WRITE_TIMEOUT":    cfg.WriteTimeout,
			"IDLE_TIMEOUT":     cfg.IdleTimeout,
			"SHUTDOWN_TIMEOUT": cfg.ShutdownTimeout,
			"REQUEST_TIMEOUT":  cfg.RequestTimeout,
		}
		for _, key := range durationEnvKeys {
			if want := durationOf(env, key); got[key] != want {
				t.Fatalf("%s = %v, want %v (env=%q)", key, got[key], want, env[key])
			}
		}
	})
}

// genDurationString generates a valid Go duration string (e.g. "3s", "500ms", "2m").
func genDurationString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		unit := rapid.SampledFrom([]string{"ms", "s", "m"}).Draw(t, "unit")
		val := rapid.IntRange(1, 600).Draw(t, "val")
		return fmt.Sprintf("%d%s", val, unit)
	})
}

func TestProperty_InvalidIntegersReturnError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		key := rapid.SampledFrom([]string{"PORT", "DB_MAX_CONNS", "DB_TX_RETRIES"}).Draw(t, "key")
		invalid := rapid.OneOf(
			rapid.StringMatching(`[a-zA-Z]{1,10}`),
			rapid.Just("12.5"),
			rapid.Just("1.0e2"),
		).Draw(t, "invalid")

		os.Setenv(key, invalid)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for %s=%q", key, invalid)
		}
	})
}

func TestProperty_InvalidEnumsReturnError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		key := rapid.SampledFrom([]string{"LOG_LEVEL", "STORE"}).Draw(t, "key")
		invalid := rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
			for _, v := range append(validLogLevels, StoreMemory, StorePostgres) {
				if s == v {
					return false
				}
			}
			return true
		}).Draw(t, "invalid")

		os.Setenv(key, invalid)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for %s=%q", key, invalid)
		}
	})
}

func TestProperty_InvalidDurationReturnsError(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				unsetAllConfigEnv()
				defer unsetAllConfigEnv()

				invalidDur := rapid.OneOf(
					rapid.StringMatching(`[a-zA-Z]{2,10}`),
					rapid.Just("5x"),
					rapid.Just("abc123"),
				).Filter(func(s string) bool {
					_, err := time.ParseDuration(s)
					return err != nil
				}).Draw(t, "invalidDuration")

				os.Setenv(key, invalidDur)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should return error for invalid %s=%q", key, invalidDur)
				}
			})
		})
	}
}
