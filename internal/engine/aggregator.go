package engine

import (
	"context"
	"fmt"

	"github.com/efreitasn/minibroker/internal/ledger"
	"github.com/shopspring/decimal"
)

// Aggregator answers balance queries by re-deriving them from the ledger
// on every call.
type Aggregator struct {
	reader ledger.Reader
}

// NewAggregator creates an Aggregator over r.
func NewAggregator(r ledger.Reader) *Aggregator {
	return &Aggregator{reader: r}
}

// CashBalance returns the account's settlement currency balance, 0 when it
// has no filled orders.
func (a *Aggregator) CashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	cash, err := a.reader.SumFilledCash(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cash balance of account %d: %w", accountID, err)
	}
	return cash, nil
}

// PositionSize returns the account's net shares of one instrument.
func (a *Aggregator) PositionSize(ctx context.Context, accountID, instrumentID int64) (int64, error) {
	shares, err := a.reader.SumFilledSignedQuantity(ctx, accountID, instrumentID)
	if err != nil {
		return 0, fmt.Errorf("position of account %d in instrument %d: %w", accountID, instrumentID, err)
	}
	return shares, nil
}
