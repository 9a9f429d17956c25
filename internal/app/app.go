// Package app assembles the configured backend and the services on top of it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/efreitasn/minibroker/internal/config"
	"github.com/efreitasn/minibroker/internal/service"
	"github.com/efreitasn/minibroker/internal/store"
	"github.com/efreitasn/minibroker/internal/store/postgres"
)

// App holds the wired services. Close releases the backend.
type App struct {
	Backend     service.Backend
	Orders      *service.OrderService
	Accounts    *service.AccountService
	Instruments *service.InstrumentService

	close func()
}

// New opens the backend selected by cfg.Store.
//
// The memory backend is always seeded, from cfg.SeedFile or the built-in
// sample data. The postgres backend is migrated and only seeded when
// cfg.SeedFile is set; seeding is idempotent.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		backend service.Backend
		closeFn func()
	)
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend, closeFn = pg, pg.Close
		logger.Info("store ready", slog.String("store", cfg.Store), slog.Int("max_conns", cfg.DBMaxConns))
	default:
		mem, err := openMemory(cfg)
		if err != nil {
			return nil, err
		}
		backend, closeFn = mem, mem.Close
		logger.Info("store ready", slog.String("store", config.StoreMemory))
	}

	return &App{
		Backend:     backend,
		Orders:      service.NewOrderService(backend, logger),
		Accounts:    service.NewAccountService(backend, cfg.SettlementTicker, logger),
		Instruments: service.NewInstrumentService(backend),
		close:       closeFn,
	}, nil
}

// Close releases the backend.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

func openMemory(cfg *config.Config) (*store.Memory, error) {
	seed, err := store.LoadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	mem := store.NewMemory(cfg.SettlementTicker)
	if err := mem.Apply(seed); err != nil {
		return nil, fmt.Errorf("seed memory store: %w", err)
	}
	return mem, nil
}

// OpenPostgres connects and migrates without seeding.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	pg, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{
		MaxConns:         int32(cfg.DBMaxConns),
		TxRetries:        cfg.DBTxRetries,
		SettlementTicker: cfg.SettlementTicker,
	})
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	pg, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.SeedFile == "" {
		return pg, nil
	}
	seed, err := store.LoadSeed(cfg.SeedFile)
	if err != nil {
		pg.Close()
		return nil, err
	}
	if err := pg.ApplySeed(ctx, seed); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
