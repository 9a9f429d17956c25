package postgres

import (
	"context"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	a := &domain.Account{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_number, email FROM accounts WHERE account_number = $1`,
		number,
	).Scan(&a.ID, &a.AccountNumber, &a.Email)
	if err != nil {
		return nil, notFound("find account", err, domain.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) FindCurrencyInstrument(ctx context.Context) (*domain.Instrument, error) {
	inst := &domain.Instrument{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, ticker, name, type FROM instruments WHERE ticker = $1 AND type = $2`,
		s.settlementTicker, domain.InstrumentTypeCurrency,
	).Scan(&inst.ID, &inst.Ticker, &inst.Name, &inst.Type)
	if err != nil {
		return nil, notFound("find currency instrument", err, domain.ErrCurrencyNotFound)
	}
	return inst, nil
}

// latestQuotes ranks each instrument's market data newest first.
const latestQuotes = `
WITH latest AS (
    SELECT m.*, ROW_NUMBER() OVER (PARTITION BY m.instrument_id ORDER BY m.date DESC, m.id DESC) AS rn
    FROM marketdata m
)`

const quoteColumns = `q.id, q.instrument_id, q.date,
    q.open::text, q.high::text, q.low::text, q.close::text, q.previous_close::text`

func (s *Store) FindInstrumentWithLatestQuote(ctx context.Context, ticker string) (*domain.Instrument, error) {
	row := s.pool.QueryRow(ctx, latestQuotes+`
SELECT i.id, i.ticker, i.name, i.type, `+quoteColumns+`
FROM instruments i
LEFT JOIN latest q ON q.instrument_id = i.id AND q.rn = 1
WHERE i.ticker = $1`, ticker)

	inst := &domain.Instrument{}
	var nq nullableQuote
	err := row.Scan(append([]any{&inst.ID, &inst.Ticker, &inst.Name, &inst.Type}, nq.dest()...)...)
	if err != nil {
		return nil, notFound("find instrument", err, domain.ErrInstrumentNotFound)
	}
	if inst.LatestQuote, err = nq.quote(); err != nil {
		return nil, storageErr("find instrument", err)
	}
	return inst, nil
}

// LatestQuote returns the most recent market data of ticker.
func (s *Store) LatestQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	inst, err := s.FindInstrumentWithLatestQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst.LatestQuote == nil {
		return nil, domain.ErrQuoteNotFound
	}
	return inst.LatestQuote, nil
}

// QuoteHistory returns ticker's market data for the trading days in
// [from, to], oldest first. Zero bounds are open.
func (s *Store) QuoteHistory(ctx context.Context, ticker string, from, to time.Time) ([]*domain.MarketQuote, error) {
	var instrumentID int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM instruments WHERE ticker = $1`, ticker).Scan(&instrumentID)
	if err != nil {
		return nil, notFound("find instrument", err, domain.ErrInstrumentNotFound)
	}

	var lower, upper *time.Time
	if !from.IsZero() {
		lower = &from
	}
	if !to.IsZero() {
		upper = &to
	}
	rows, err := s.pool.Query(ctx, `SELECT `+quoteColumns+`
FROM marketdata q
WHERE q.instrument_id = $1
  AND ($2::date IS NULL OR q.date >= $2::date)
  AND ($3::date IS NULL OR q.date <= $3::date)
ORDER BY q.date`, instrumentID, lower, upper)
	if err != nil {
		return nil, storageErr("quote history", err)
	}
	defer rows.Close()

	out := make([]*domain.MarketQuote, 0)
	for rows.Next() {
		var nq nullableQuote
		if err := rows.Scan(nq.dest()...); err != nil {
			return nil, storageErr("scan quote", err)
		}
		q, err := nq.quote()
		if err != nil {
			return nil, storageErr("scan quote", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("quote history", err)
	}
	return out, nil
}

func (s *Store) SearchInstruments(ctx context.Context, query string) ([]*domain.Instrument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, name, type FROM instruments
		 WHERE ticker ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		 ORDER BY ticker`,
		query,
	)
	if err != nil {
		return nil, storageErr("search instruments", err)
	}
	defer rows.Close()

	out := make([]*domain.Instrument, 0)
	for rows.Next() {
		inst := &domain.Instrument{}
		if err := rows.Scan(&inst.ID, &inst.Ticker, &inst.Name, &inst.Type); err != nil {
			return nil, storageErr("scan instrument", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search instruments", err)
	}
	return out, nil
}

// nullableQuote receives a LEFT JOINed marketdata row.
type nullableQuote struct {
	id, instrumentID                 *int64
	date                             *time.Time
	open, high, low, last, prevClose *string
}

func (n *nullableQuote) dest() []any {
	return []any{&n.id, &n.instrumentID, &n.date, &n.open, &n.high, &n.low, &n.last, &n.prevClose}
}

// quote returns nil when the join found no market data.
func (n *nullableQuote) quote() (*domain.MarketQuote, error) {
	if n.id == nil {
		return nil, nil
	}
	q := &domain.MarketQuote{ID: *n.id, InstrumentID: *n.instrumentID, Date: n.date.UTC()}
	fields := []struct {
		src *string
		dst *decimal.Decimal
	}{
		{n.open, &q.Open},
		{n.high, &q.High},
		{n.low, &q.Low},
		{n.last, &q.Close},
		{n.prevClose, &q.PreviousClose},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		d, err := parseDecimal(*f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return q, nil
}
