package ledger

import (
	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/shopspring/decimal"
)

// CashBalance sums the cash effect of every filled order. CASH_IN and SELL
// add size × price, CASH_OUT and BUY subtract it. An empty ledger yields 0.
func CashBalance(orders []*domain.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status != domain.OrderStatusFilled {
			continue
		}
		total = total.Add(o.CashDelta())
	}
	return total
}

// PositionSize sums BUY minus SELL sizes of filled orders on one instrument.
func PositionSize(orders []*domain.Order, instrumentID int64) int64 {
	var shares int64
	for _, o := range orders {
		if o.Status != domain.OrderStatusFilled || o.InstrumentID != instrumentID {
			continue
		}
		shares += o.ShareDelta()
	}
	return shares
}

// Holding accumulates the filled trades of one instrument.
type Holding struct {
	InstrumentID int64
	Instrument   *domain.Instrument
	Shares       int64
	CostBasis    decimal.Decimal // BUY adds size × price, SELL subtracts it
}

// Holdings groups filled BUY and SELL orders by instrument, in order of
// first appearance. Cash orders are skipped. The instrument of the first
// order seen for an id is kept on the holding.
func Holdings(orders []*domain.Order) []Holding {
	index := make(map[int64]int)
	var out []Holding
	for _, o := range orders {
		if o.Status != domain.OrderStatusFilled || o.Side.IsCash() {
			continue
		}
		i, ok := index[o.InstrumentID]
		if !ok {
			i = len(out)
			index[o.InstrumentID] = i
			out = append(out, Holding{InstrumentID: o.InstrumentID, Instrument: o.Instrument, CostBasis: decimal.Zero})
		}
		h := &out[i]
		h.Shares += o.ShareDelta()
		h.CostBasis = h.CostBasis.Sub(o.CashDelta())
	}
	return out
}

// Positions returns the net share quantity per instrument for filled
// trades, in order of first appearance.
func Positions(orders []*domain.Order) []domain.Position {
	holdings := Holdings(orders)
	out := make([]domain.Position, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, domain.Position{InstrumentID: h.InstrumentID, Shares: h.Shares})
	}
	return out
}
