// Package engine admits orders against derived account balances and values
// portfolios from the filled-order ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is an order submission whose account and instrument are already
// resolved. For cash sides Instrument is the settlement currency.
type Request struct {
	Account    *domain.Account
	Instrument *domain.Instrument
	Type       domain.OrderType
	Side       domain.OrderSide
	Size       *int64           // exclusive with Amount
	Amount     *decimal.Decimal // settlement currency to spend or raise
	Price      *decimal.Decimal // limit price, LIMIT only
}

// Admitter validates requests, resolves the execution price and size,
// checks them against the account's derived balances and appends exactly
// one order with its terminal status.
type Admitter struct {
	ledger ledger.Store
	now    func() time.Time
	newID  func() string
}

// NewAdmitter creates an Admitter over the given ledger.
func NewAdmitter(l ledger.Store) *Admitter {
	return &Admitter{
		ledger: l,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// route is the (type, side) pair admission dispatches on.
type route struct {
	typ  domain.OrderType
	side domain.OrderSide
}

// Admit runs admission for req. Insufficient funds or shares are not
// errors: the order is persisted as REJECTED and returned. Errors are
// *domain.ValidationError for malformed requests, *domain.UnprocessableError
// for uneconomic ones, or a storage failure; none of them leave an order
// behind.
func (a *Admitter) Admit(ctx context.Context, req Request) (*domain.Order, error) {
	if req.Account == nil || req.Instrument == nil {
		return nil, errors.New("admission requires a resolved account and instrument")
	}

	switch (route{req.Type, req.Side}) {
	case route{domain.OrderTypeMarket, domain.OrderSideCashIn}, route{domain.OrderTypeMarket, domain.OrderSideCashOut}:
		return a.admitCash(ctx, req)
	case route{domain.OrderTypeMarket, domain.OrderSideBuy}, route{domain.OrderTypeMarket, domain.OrderSideSell}:
		if req.Price != nil {
			return nil, &domain.ValidationError{Message: "market orders must not include price"}
		}
		price, err := marketPrice(req.Instrument)
		if err != nil {
			return nil, err
		}
		return a.admitTrade(ctx, req, price, domain.OrderStatusFilled)
	case route{domain.OrderTypeLimit, domain.OrderSideBuy}, route{domain.OrderTypeLimit, domain.OrderSideSell}:
		if req.Price == nil {
			return nil, &domain.ValidationError{Message: "price is required for limit orders"}
		}
		if !req.Price.IsPositive() {
			return nil, &domain.UnprocessableError{Message: "limit price must be greater than 0"}
		}
		return a.admitTrade(ctx, req, *req.Price, domain.OrderStatusNew)
	default:
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("unsupported order: type %q with side %q", req.Type, req.Side),
		}
	}
}

// admitCash handles CASH_IN and CASH_OUT at the fixed settlement price.
func (a *Admitter) admitCash(ctx context.Context, req Request) (*domain.Order, error) {
	if req.Size == nil || req.Amount != nil {
		return nil, &domain.ValidationError{Message: "cash orders require size and must not include amount"}
	}
	if req.Price != nil {
		return nil, &domain.ValidationError{Message: "cash orders must not include price"}
	}
	if req.Instrument.Type != domain.InstrumentTypeCurrency {
		return nil, &domain.UnprocessableError{Message: "cash orders must reference the settlement currency"}
	}
	if *req.Size <= 0 {
		return nil, &domain.UnprocessableError{Message: "size must be greater than 0"}
	}

	order := a.newOrder(req, *req.Size, domain.SettlementPrice)
	needed := order.Notional()

	err := a.ledger.WithinAccount(ctx, req.Account.ID, func(tx ledger.Tx) error {
		order.Status = domain.OrderStatusFilled
		if req.Side == domain.OrderSideCashOut {
			cash, err := tx.SumFilledCash(ctx, req.Account.ID)
			if err != nil {
				return err
			}
			if cash.LessThan(needed) {
				order.Status = domain.OrderStatusRejected
			}
		}
		return tx.PersistOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// admitTrade handles BUY and SELL at price. okStatus is assigned when the
// account has enough cash or shares.
func (a *Admitter) admitTrade(ctx context.Context, req Request, price decimal.Decimal, okStatus domain.OrderStatus) (*domain.Order, error) {
	if !req.Instrument.IsStock() {
		return nil, &domain.UnprocessableError{Message: fmt.Sprintf("instrument %s is not tradable", req.Instrument.Ticker)}
	}

	size, err := ResolveSize(req.Size, req.Amount, price)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, &domain.UnprocessableError{Message: "resolved size must be greater than 0"}
	}

	order := a.newOrder(req, size, price)
	needed := order.Notional()
	if !needed.IsPositive() {
		return nil, &domain.UnprocessableError{Message: "needed funds must be greater than 0"}
	}

	err = a.ledger.WithinAccount(ctx, req.Account.ID, func(tx ledger.Tx) error {
		order.Status = okStatus
		switch req.Side {
		case domain.OrderSideBuy:
			cash, err := tx.SumFilledCash(ctx, req.Account.ID)
			if err != nil {
				return err
			}
			if cash.LessThan(needed) {
				order.Status = domain.OrderStatusRejected
			}
		case domain.OrderSideSell:
			shares, err := tx.SumFilledSignedQuantity(ctx, req.Account.ID, req.Instrument.ID)
			if err != nil {
				return err
			}
			if shares < size {
				order.Status = domain.OrderStatusRejected
			}
		}
		return tx.PersistOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (a *Admitter) newOrder(req Request, size int64, price decimal.Decimal) *domain.Order {
	inst := *req.Instrument
	inst.LatestQuote = nil
	return &domain.Order{
		ID:           a.newID(),
		AccountID:    req.Account.ID,
		InstrumentID: req.Instrument.ID,
		Instrument:   &inst,
		Type:         req.Type,
		Side:         req.Side,
		Size:         size,
		Price:        price,
		CreatedAt:    a.now().UTC().Truncate(time.Second),
	}
}

// marketPrice returns the instrument's latest close.
func marketPrice(inst *domain.Instrument) (decimal.Decimal, error) {
	price, ok := inst.LastClose()
	if !ok || !price.IsPositive() {
		return decimal.Zero, &domain.UnprocessableError{Message: "invalid last close price"}
	}
	return price, nil
}

// ResolveSize returns the share quantity of an order given exactly one of
// size or amount. An amount resolves to floor(amount / price). price must
// be positive.
func ResolveSize(size *int64, amount *decimal.Decimal, price decimal.Decimal) (int64, error) {
	switch {
	case size != nil && amount != nil:
		return 0, &domain.ValidationError{Message: "size and amount are mutually exclusive"}
	case size == nil && amount == nil:
		return 0, &domain.ValidationError{Message: "one of size or amount is required"}
	case size != nil:
		return *size, nil
	}
	q, _ := amount.QuoRem(price, 0)
	return q.IntPart(), nil
}
