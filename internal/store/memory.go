package store

import (
	"context"
	"sync"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/ledger"
	"github.com/shopspring/decimal"
)

var _ ledger.Store = (*Memory)(nil)

// Memory bundles the in-memory stores behind the storage interfaces used by
// the services and the admission engine.
type Memory struct {
	Accounts    *AccountStore
	Instruments *InstrumentStore
	Quotes      *MarketDataStore
	Orders      *OrderStore

	settlementTicker string

	locksMu sync.Mutex
	locks   map[int64]chan struct{} // account_id → one-slot semaphore
}

// NewMemory creates an empty in-memory backend. settlementTicker names the
// currency instrument returned by FindCurrencyInstrument.
func NewMemory(settlementTicker string) *Memory {
	if settlementTicker == "" {
		settlementTicker = domain.DefaultSettlementTicker
	}
	return &Memory{
		Accounts:         NewAccountStore(),
		Instruments:      NewInstrumentStore(),
		Quotes:           NewMarketDataStore(),
		Orders:           NewOrderStore(),
		settlementTicker: settlementTicker,
		locks:            make(map[int64]chan struct{}),
	}
}

// Close is a no-op.
func (m *Memory) Close() {}

func (m *Memory) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Accounts.FindByNumber(number)
}

func (m *Memory) FindCurrencyInstrument(ctx context.Context) (*domain.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst, err := m.Instruments.FindByTicker(m.settlementTicker)
	if err != nil || inst.Type != domain.InstrumentTypeCurrency {
		return nil, domain.ErrCurrencyNotFound
	}
	return inst, nil
}

func (m *Memory) FindInstrumentWithLatestQuote(ctx context.Context, ticker string) (*domain.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst, err := m.Instruments.FindByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if q, ok := m.Quotes.Latest(inst.ID); ok {
		inst.LatestQuote = q
	}
	return inst, nil
}

// LatestQuote returns the most recent market data of ticker.
func (m *Memory) LatestQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	inst, err := m.FindInstrumentWithLatestQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst.LatestQuote == nil {
		return nil, domain.ErrQuoteNotFound
	}
	return inst.LatestQuote, nil
}

// QuoteHistory returns ticker's market data for the trading days in
// [from, to], oldest first.
func (m *Memory) QuoteHistory(ctx context.Context, ticker string, from, to time.Time) ([]*domain.MarketQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst, err := m.Instruments.FindByTicker(ticker)
	if err != nil {
		return nil, err
	}
	return m.Quotes.History(inst.ID, from, to), nil
}

func (m *Memory) SearchInstruments(ctx context.Context, query string) ([]*domain.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Instruments.Search(query), nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Orders.Get(id)
}

func (m *Memory) ListOrders(ctx context.Context, accountID int64, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	orders, total := m.Orders.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}

func (m *Memory) SumFilledCash(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return ledger.CashBalance(m.Orders.Snapshot(accountID)), nil
}

func (m *Memory) SumFilledSignedQuantity(ctx context.Context, accountID, instrumentID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return ledger.PositionSize(m.Orders.Snapshot(accountID), instrumentID), nil
}

func (m *Memory) ListFilledStockOrdersWithLatestQuote(ctx context.Context, accountID int64) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quotes := make(map[int64]*domain.MarketQuote)
	out := make([]*domain.Order, 0)
	for _, o := range m.Orders.Snapshot(accountID) {
		if o.Status != domain.OrderStatusFilled {
			continue
		}
		inst, err := m.Instruments.Get(o.InstrumentID)
		if err != nil {
			return nil, err
		}
		if !inst.IsStock() {
			continue
		}
		q, seen := quotes[inst.ID]
		if !seen {
			q, _ = m.Quotes.Latest(inst.ID)
			quotes[inst.ID] = q
		}
		inst.LatestQuote = q

		c := *o
		c.Instrument = inst
		out = append(out, &c)
	}
	return out, nil
}

// WithinAccount serializes fn against every other WithinAccount call for
// the same account. Orders persisted by fn are committed only if fn
// returns nil.
func (m *Memory) WithinAccount(ctx context.Context, accountID int64, fn func(tx ledger.Tx) error) error {
	lock := m.accountLock(accountID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	tx := &memoryTx{m: m, accountID: accountID}
	if err := fn(tx); err != nil {
		return err
	}
	for _, o := range tx.pending {
		m.Orders.Create(o)
	}
	return nil
}

func (m *Memory) accountLock(accountID int64) chan struct{} {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[accountID]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[accountID] = l
	}
	return l
}

// memoryTx reads committed orders only; persisted orders stay pending
// until WithinAccount commits them.
type memoryTx struct {
	m         *Memory
	accountID int64
	pending   []*domain.Order
}

func (tx *memoryTx) SumFilledCash(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return tx.m.SumFilledCash(ctx, accountID)
}

func (tx *memoryTx) SumFilledSignedQuantity(ctx context.Context, accountID, instrumentID int64) (int64, error) {
	return tx.m.SumFilledSignedQuantity(ctx, accountID, instrumentID)
}

func (tx *memoryTx) PersistOrder(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.pending = append(tx.pending, o)
	return nil
}
