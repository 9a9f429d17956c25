package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all runtime configuration for the broker.
type Config struct {
	Port     int
	LogLevel string

	Store            string
	DatabaseURL      string // assembled from DATABASE_* parts when DATABASE_URL is unset
	DBMaxConns       int
	DBTxRetries      int
	SettlementTicker string
	SeedFile         string // empty loads the built-in seed into the memory store

	CORSAllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Load reads an optional .env file (ENV_FILE, default ".env"), then
// configuration from environment variables, applies defaults, and
// validates values. Variables already set in the environment win over the
// file. It returns an error for any invalid value.
func Load() (*Config, error) {
	envFile := getStr("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	storeKind := getStr("STORE", StoreMemory)
	if storeKind != StoreMemory && storeKind != StorePostgres {
		return nil, fmt.Errorf("invalid STORE: %q, must be one of: memory, postgres", storeKind)
	}

	dbURL, err := databaseURL()
	if err != nil {
		return nil, err
	}
	if storeKind == StorePostgres && dbURL == "" {
		return nil, fmt.Errorf("STORE=postgres requires DATABASE_URL or DATABASE_HOST")
	}

	dbMaxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	if dbMaxConns < 1 {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: must be >= 1")
	}

	dbTxRetries, err := getInt("DB_TX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_TX_RETRIES: %w", err)
	}
	if dbTxRetries < 0 {
		return nil, fmt.Errorf("invalid DB_TX_RETRIES: must be >= 0")
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		Store:              storeKind,
		DatabaseURL:        dbURL,
		DBMaxConns:         dbMaxConns,
		DBTxRetries:        dbTxRetries,
		SettlementTicker:   strings.ToUpper(getStr("SETTLEMENT_TICKER", "ARS")),
		SeedFile:           os.Getenv("SEED_FILE"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
		RequestTimeout:     requestTimeout,
	}, nil
}

// databaseURL returns DATABASE_URL, or a postgres URL built from
// DATABASE_HOST, DATABASE_PORT, DATABASE_USER, DATABASE_PASS, DATABASE_NAME
// and DATABASE_SSL. Both unset yields "".
func databaseURL() (string, error) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		if _, err := url.Parse(v); err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		return v, nil
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return "", nil
	}
	port, err := getInt("DATABASE_PORT", 5432)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_PORT: %w", err)
	}
	sslMode := getStr("DATABASE_SSL", "disable")
	switch sslMode {
	case "disable", "require", "verify-ca", "verify-full", "prefer", "allow":
	default:
		return "", fmt.Errorf("invalid DATABASE_SSL: %q", sslMode)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getStr("DATABASE_USER", "postgres"), os.Getenv("DATABASE_PASS")),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + getStr("DATABASE_NAME", "minibroker"),
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String(), nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated variable, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
