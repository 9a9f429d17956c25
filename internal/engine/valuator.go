package engine

import (
	"context"
	"fmt"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/ledger"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Valuator turns an account's filled stock orders and the latest quotes
// into a portfolio.
type Valuator struct {
	store    ledger.Store
	balances *Aggregator
}

// NewValuator creates a Valuator over s.
func NewValuator(s ledger.Store) *Valuator {
	return &Valuator{store: s, balances: NewAggregator(s)}
}

// Valuate values the account. Assets keep the order in which their
// instrument first appears in the ledger and exclude instruments whose net
// shares are not positive.
func (v *Valuator) Valuate(ctx context.Context, account *domain.Account) (*domain.Portfolio, error) {
	orders, err := v.store.ListFilledStockOrdersWithLatestQuote(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list filled stock orders of account %d: %w", account.ID, err)
	}

	invested := decimal.Zero
	assets := make([]domain.Asset, 0)
	for _, h := range ledger.Holdings(orders) {
		if h.Shares <= 0 {
			continue
		}
		last, _ := h.Instrument.LastClose()
		assets = append(assets, domain.Asset{
			Instrument:  h.Instrument,
			Shares:      h.Shares,
			TotalValue:  h.CostBasis,
			Performance: Performance(last, h.Shares, h.CostBasis),
		})
		invested = invested.Add(h.CostBasis)
	}

	cash, err := v.balances.CashBalance(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	return &domain.Portfolio{
		Account:       account,
		CashAvailable: cash,
		AccountTotal:  cash.Add(invested),
		Assets:        assets,
	}, nil
}

// Performance returns the percent return of holding shares at lastClose
// against the amount invested: (lastClose × shares − invested) / invested × 100.
// It is 0 when nothing was invested or no close price is known.
func Performance(lastClose decimal.Decimal, shares int64, invested decimal.Decimal) decimal.Decimal {
	if invested.IsZero() || lastClose.IsZero() {
		return decimal.Zero
	}
	market := lastClose.Mul(decimal.NewFromInt(shares))
	return market.Sub(invested).Div(invested).Mul(hundred)
}
