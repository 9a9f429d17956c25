// Package postgres implements the account ledger and reference data on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// Options tune a Store.
type Options struct {
	MaxConns         int32
	TxRetries        int    // extra attempts after a serialization failure
	SettlementTicker string // defaults to domain.DefaultSettlementTicker
}

// Store is the Postgres backend.
type Store struct {
	pool             *pgxpool.Pool
	txRetries        int
	settlementTicker string
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storageErr("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageErr("ping", err)
	}

	ticker := opts.SettlementTicker
	if ticker == "" {
		ticker = domain.DefaultSettlementTicker
	}
	return &Store{pool: pool, txRetries: max(opts.TxRetries, 0), settlementTicker: ticker}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// storageErr marks err as an infrastructure failure. Context errors are
// returned unchanged so callers can tell cancellation apart.
func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

// notFound maps pgx.ErrNoRows to sentinel, anything else to a storage error.
func notFound(op string, err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return storageErr(op, err)
}

// isSerializationFailure reports whether err is worth retrying the whole
// transaction for.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// parseDecimal reads a NUMERIC column selected as text.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
