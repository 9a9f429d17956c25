package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes market orders from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderSide indicates the direction of an order. CASH_IN and CASH_OUT
// move settlement currency in and out of the account; BUY and SELL trade
// shares of a stock instrument.
type OrderSide string

const (
	OrderSideBuy     OrderSide = "BUY"
	OrderSideSell    OrderSide = "SELL"
	OrderSideCashIn  OrderSide = "CASH_IN"
	OrderSideCashOut OrderSide = "CASH_OUT"
)

// IsCash reports whether the side moves settlement currency.
func (s OrderSide) IsCash() bool {
	return s == OrderSideCashIn || s == OrderSideCashOut
}

// OrderStatus is the terminal state assigned to an order at admission.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	// OrderStatusCancelled is accepted as a list filter. Admission never
	// assigns it.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a single ledger entry. Orders are created once, with their
// status already assigned, and never change afterwards.
type Order struct {
	ID           string
	AccountID    int64
	InstrumentID int64
	Instrument   *Instrument // populated on reads; may carry the latest quote
	Type         OrderType
	Side         OrderSide
	Size         int64
	Price        decimal.Decimal
	Status       OrderStatus
	CreatedAt    time.Time
}

// Notional returns size × price.
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Size))
}

// CashDelta returns the signed effect of the order on the account's
// settlement currency balance, ignoring status.
func (o *Order) CashDelta() decimal.Decimal {
	switch o.Side {
	case OrderSideCashIn, OrderSideSell:
		return o.Notional()
	case OrderSideCashOut, OrderSideBuy:
		return o.Notional().Neg()
	}
	return decimal.Zero
}

// ShareDelta returns the signed effect of the order on the position of its
// instrument, ignoring status.
func (o *Order) ShareDelta() int64 {
	switch o.Side {
	case OrderSideBuy:
		return o.Size
	case OrderSideSell:
		return -o.Size
	}
	return 0
}
