package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/engine"
	"github.com/shopspring/decimal"
)

const maxAccountNumberLen = 20

// ValidOrderStatuses lists all valid order status filter values.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusNew:       true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusRejected:  true,
	domain.OrderStatusCancelled: true,
}

var (
	validOrderTypes = map[domain.OrderType]bool{
		domain.OrderTypeMarket: true,
		domain.OrderTypeLimit:  true,
	}
	validOrderSides = map[domain.OrderSide]bool{
		domain.OrderSideBuy:     true,
		domain.OrderSideSell:    true,
		domain.OrderSideCashIn:  true,
		domain.OrderSideCashOut: true,
	}
	one = decimal.NewFromInt(1)
)

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	AccountNumber string
	Type          domain.OrderType
	Side          domain.OrderSide
	Ticker        *string          // BUY and SELL only
	Size          *int64           // exclusive with Amount
	Amount        *decimal.Decimal // BUY and SELL only
	Price         *decimal.Decimal // LIMIT only
}

// OrderService handles order submission, retrieval and listing.
type OrderService struct {
	backend  Backend
	admitter *engine.Admitter
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService over backend.
func NewOrderService(backend Backend, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		backend:  backend,
		admitter: engine.NewAdmitter(backend),
		logger:   logger,
	}
}

// SubmitOrder validates the request shape, resolves the account and the
// instrument, and runs admission. A REJECTED order is a successful result.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	if err := validateSubmitOrder(req); err != nil {
		return nil, err
	}

	account, err := s.backend.FindAccountByNumber(ctx, req.AccountNumber)
	if err != nil {
		return nil, err
	}

	var inst *domain.Instrument
	if req.Side.IsCash() {
		inst, err = s.backend.FindCurrencyInstrument(ctx)
	} else {
		inst, err = s.backend.FindInstrumentWithLatestQuote(ctx, *req.Ticker)
	}
	if err != nil {
		return nil, err
	}

	order, err := s.admitter.Admit(ctx, engine.Request{
		Account:    account,
		Instrument: inst,
		Type:       req.Type,
		Side:       req.Side,
		Size:       req.Size,
		Amount:     req.Amount,
		Price:      req.Price,
	})
	if err != nil {
		var ue *domain.UnprocessableError
		if errors.As(err, &ue) {
			s.logger.DebugContext(ctx, "order unprocessable",
				"account_number", account.AccountNumber,
				"ticker", inst.Ticker,
				"reason", ue.Message,
			)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "order admitted",
		"order_id", order.ID,
		"account_number", account.AccountNumber,
		"ticker", inst.Ticker,
		"type", order.Type,
		"side", order.Side,
		"size", order.Size,
		"status", order.Status,
		"notional", order.Notional().StringFixed(2),
	)
	return order, nil
}

// validateSubmitOrder checks the request shape before any lookup.
func validateSubmitOrder(req SubmitOrderRequest) error {
	if req.AccountNumber == "" || len(req.AccountNumber) > maxAccountNumberLen {
		return &domain.ValidationError{
			Message: fmt.Sprintf("account_number is required and must be at most %d characters", maxAccountNumberLen),
		}
	}
	if !validOrderTypes[req.Type] {
		return &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: MARKET, LIMIT", req.Type),
		}
	}
	if !validOrderSides[req.Side] {
		return &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order side: %s. Must be one of: BUY, SELL, CASH_IN, CASH_OUT", req.Side),
		}
	}

	if req.Side.IsCash() {
		if req.Type != domain.OrderTypeMarket {
			return &domain.ValidationError{Message: "cash orders must be MARKET orders"}
		}
		if req.Ticker != nil || req.Amount != nil || req.Price != nil {
			return &domain.ValidationError{Message: "cash orders must not include ticker, amount or price"}
		}
		if req.Size == nil {
			return &domain.ValidationError{Message: "size is required for cash orders"}
		}
	} else {
		if req.Ticker == nil || *req.Ticker == "" {
			return &domain.ValidationError{Message: "ticker is required for BUY and SELL orders"}
		}
		if (req.Size == nil) == (req.Amount == nil) {
			return &domain.ValidationError{Message: "exactly one of size or amount is required"}
		}
	}

	switch req.Type {
	case domain.OrderTypeLimit:
		if req.Price == nil {
			return &domain.ValidationError{Message: "price is required for limit orders"}
		}
	case domain.OrderTypeMarket:
		if req.Price != nil {
			return &domain.ValidationError{Message: "market orders must not include price"}
		}
	}

	if req.Size != nil && (*req.Size < 1 || decimal.NewFromInt(*req.Size).GreaterThan(domain.MaxMonetaryValue)) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("size must be between 1 and %s", domain.MaxMonetaryValue),
		}
	}
	if err := validateMonetary("amount", req.Amount); err != nil {
		return err
	}
	return validateMonetary("price", req.Price)
}

func validateMonetary(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.LessThan(one) || v.GreaterThan(domain.MaxMonetaryValue) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("%s must be between 1 and %s", field, domain.MaxMonetaryValue),
		}
	}
	if err := domain.CheckPrecision(*v); err != nil {
		return &domain.ValidationError{
			Message: fmt.Sprintf("%s must have at most 2 decimal places", field),
		}
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.backend.GetOrder(ctx, orderID)
}

// ListOrders returns a paginated list of orders for an account, newest
// first, with optional status filtering.
func (s *OrderService) ListOrders(ctx context.Context, accountNumber string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: NEW, FILLED, REJECTED, CANCELLED", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	account, err := s.backend.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, 0, err
	}
	return s.backend.ListOrders(ctx, account.ID, status, page, limit)
}
