package service

import (
	"context"
	"log/slog"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/engine"
	"github.com/shopspring/decimal"
)

// BalanceResponse is an account's available settlement currency.
type BalanceResponse struct {
	AccountNumber string
	Currency      string
	CashAvailable decimal.Decimal
}

// AccountService answers balance and portfolio queries. Every answer is
// re-derived from the ledger.
type AccountService struct {
	backend    Backend
	aggregator *engine.Aggregator
	valuator   *engine.Valuator
	currency   string
	logger     *slog.Logger
}

// NewAccountService creates a new AccountService. currency labels balances
// and defaults to domain.DefaultSettlementTicker.
func NewAccountService(backend Backend, currency string, logger *slog.Logger) *AccountService {
	if currency == "" {
		currency = domain.DefaultSettlementTicker
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		backend:    backend,
		aggregator: engine.NewAggregator(backend),
		valuator:   engine.NewValuator(backend),
		currency:   currency,
		logger:     logger,
	}
}

// GetCashBalance returns the account's cash balance.
func (s *AccountService) GetCashBalance(ctx context.Context, accountNumber string) (*BalanceResponse, error) {
	account, err := s.backend.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	cash, err := s.aggregator.CashBalance(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		AccountNumber: account.AccountNumber,
		Currency:      s.currency,
		CashAvailable: cash,
	}, nil
}

// GetPosition returns the account's net shares of ticker.
func (s *AccountService) GetPosition(ctx context.Context, accountNumber, ticker string) (int64, error) {
	account, err := s.backend.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return 0, err
	}
	inst, err := s.backend.FindInstrumentWithLatestQuote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return s.aggregator.PositionSize(ctx, account.ID, inst.ID)
}

// GetPortfolio values the account's holdings at the latest close prices.
func (s *AccountService) GetPortfolio(ctx context.Context, accountNumber string) (*domain.Portfolio, error) {
	account, err := s.backend.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	p, err := s.valuator.Valuate(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "portfolio valued",
		"account_number", account.AccountNumber,
		"assets", len(p.Assets),
		"account_total", domain.FormatMoney(p.AccountTotal, s.currency),
	)
	return p, nil
}
