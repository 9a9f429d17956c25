// Package service validates API requests, resolves accounts and instruments
// and delegates to the admission engine and the portfolio valuator.
package service

import (
	"context"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/ledger"
)

// Catalog resolves accounts, instruments and market data.
type Catalog interface {
	FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	FindCurrencyInstrument(ctx context.Context) (*domain.Instrument, error)
	FindInstrumentWithLatestQuote(ctx context.Context, ticker string) (*domain.Instrument, error)
	SearchInstruments(ctx context.Context, query string) ([]*domain.Instrument, error)
	LatestQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error)
	QuoteHistory(ctx context.Context, ticker string, from, to time.Time) ([]*domain.MarketQuote, error)
}

// OrderFinder reads back persisted orders.
type OrderFinder interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, accountID int64, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error)
}

// Backend is everything the services need from a store. Both the in-memory
// and the Postgres store implement it.
type Backend interface {
	Catalog
	OrderFinder
	ledger.Store
}
