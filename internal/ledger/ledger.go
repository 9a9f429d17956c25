// Package ledger folds an account's append-only order history into derived
// balances, and declares the storage contract the admission and valuation
// code reads the history through.
package ledger

import (
	"context"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/shopspring/decimal"
)

// Reader aggregates filled orders for one account.
type Reader interface {
	SumFilledCash(ctx context.Context, accountID int64) (decimal.Decimal, error)
	SumFilledSignedQuantity(ctx context.Context, accountID, instrumentID int64) (int64, error)
}

// Tx is a view of one account's ledger that is serialized against every
// other Tx for the same account. Reads observe all previously committed
// orders and never the order being admitted.
type Tx interface {
	Reader
	// PersistOrder appends o. The append becomes visible when the
	// enclosing WithinAccount call returns nil.
	PersistOrder(ctx context.Context, o *domain.Order) error
}

// Store is the ledger storage boundary.
type Store interface {
	Reader
	// WithinAccount runs fn with exclusive access to the account's ledger.
	// If fn returns an error nothing it persisted is kept.
	WithinAccount(ctx context.Context, accountID int64, fn func(tx Tx) error) error
	// ListFilledStockOrdersWithLatestQuote returns the account's filled
	// orders on stock instruments in ledger order. Each order's Instrument
	// carries the instrument's latest quote when one exists.
	ListFilledStockOrdersWithLatestQuote(ctx context.Context, accountID int64) ([]*domain.Order, error)
}
