package postgres

import (
	"context"
	"fmt"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var _ ledger.Store = (*Store)(nil)

const sumFilledCash = `
SELECT COALESCE(SUM(CASE
    WHEN side IN ('CASH_IN', 'SELL') THEN size * price
    WHEN side IN ('CASH_OUT', 'BUY') THEN -size * price
    ELSE 0
END), 0)::text
FROM orders
WHERE account_id = $1 AND status = 'FILLED'`

const sumFilledSignedQuantity = `
SELECT COALESCE(SUM(CASE
    WHEN side = 'BUY' THEN size
    WHEN side = 'SELL' THEN -size
    ELSE 0
END), 0)::bigint
FROM orders
WHERE account_id = $1 AND instrument_id = $2 AND status = 'FILLED'`

const orderColumns = `o.id::text, o.account_id, o.instrument_id, o.type, o.side, o.size,
    o.price::text, o.status, o.created_at, i.id, i.ticker, i.name, i.type`

func sumCash(ctx context.Context, q querier, accountID int64) (decimal.Decimal, error) {
	var s string
	if err := q.QueryRow(ctx, sumFilledCash, accountID).Scan(&s); err != nil {
		return decimal.Zero, storageErr("sum filled cash", err)
	}
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, storageErr("sum filled cash", err)
	}
	return d, nil
}

func sumQuantity(ctx context.Context, q querier, accountID, instrumentID int64) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, sumFilledSignedQuantity, accountID, instrumentID).Scan(&n); err != nil {
		return 0, storageErr("sum filled quantity", err)
	}
	return n, nil
}

func insertOrder(ctx context.Context, q querier, o *domain.Order) error {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return fmt.Errorf("order id %q: %w", o.ID, err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO orders (id, account_id, instrument_id, size, price, type, side, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, o.AccountID, o.InstrumentID, o.Size, o.Price.String(),
		o.Type, o.Side, o.Status, o.CreatedAt,
	)
	if err != nil {
		return storageErr("insert order", err)
	}
	return nil
}

// scanOrder reads orderColumns, optionally followed by extra destinations.
func scanOrder(row pgx.Row, extra ...any) (*domain.Order, error) {
	o := &domain.Order{Instrument: &domain.Instrument{}}
	var price string
	dest := append([]any{
		&o.ID, &o.AccountID, &o.InstrumentID, &o.Type, &o.Side, &o.Size,
		&price, &o.Status, &o.CreatedAt,
		&o.Instrument.ID, &o.Instrument.Ticker, &o.Instrument.Name, &o.Instrument.Type,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	var err error
	if o.Price, err = parseDecimal(price); err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

func (s *Store) SumFilledCash(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return sumCash(ctx, s.pool, accountID)
}

func (s *Store) SumFilledSignedQuantity(ctx context.Context, accountID, instrumentID int64) (int64, error) {
	return sumQuantity(ctx, s.pool, accountID, instrumentID)
}

// ListFilledStockOrdersWithLatestQuote returns the account's filled stock
// orders in ledger order, each instrument carrying its latest quote.
func (s *Store) ListFilledStockOrdersWithLatestQuote(ctx context.Context, accountID int64) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, latestQuotes+`
SELECT `+orderColumns+`, `+quoteColumns+`
FROM orders o
JOIN instruments i ON i.id = o.instrument_id
LEFT JOIN latest q ON q.instrument_id = i.id AND q.rn = 1
WHERE o.account_id = $1 AND o.status = 'FILLED' AND i.type = 'STOCK'
ORDER BY o.created_at, o.seq`, accountID)
	if err != nil {
		return nil, storageErr("list filled stock orders", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		var nq nullableQuote
		o, err := scanOrder(rows, nq.dest()...)
		if err != nil {
			return nil, storageErr("scan order", err)
		}
		if o.Instrument.LatestQuote, err = nq.quote(); err != nil {
			return nil, storageErr("scan quote", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list filled stock orders", err)
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+`
FROM orders o JOIN instruments i ON i.id = o.instrument_id
WHERE o.id = $1::uuid`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound("get order", err, domain.ErrOrderNotFound)
	}
	return o, nil
}

// ListOrders returns a page of the account's orders, newest first, and the
// number of orders matching status (all when nil).
func (s *Store) ListOrders(ctx context.Context, accountID int64, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders o WHERE o.account_id = $1 AND ($2::text IS NULL OR o.status = $2)`,
		accountID, filter,
	).Scan(&total)
	if err != nil {
		return nil, 0, storageErr("count orders", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders o JOIN instruments i ON i.id = o.instrument_id
WHERE o.account_id = $1 AND ($2::text IS NULL OR o.status = $2)
ORDER BY o.created_at DESC, o.seq DESC
LIMIT $3 OFFSET $4`, accountID, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, storageErr("list orders", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, storageErr("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list orders", err)
	}
	return out, total, nil
}

// WithinAccount runs fn in a transaction holding the account row lock, so
// admissions for one account are serialized. Serialization failures and
// deadlocks rerun fn from scratch up to the configured number of retries.
func (s *Store) WithinAccount(ctx context.Context, accountID int64, fn func(tx ledger.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.txRetries; attempt++ {
		err = s.withinAccountOnce(ctx, accountID, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func (s *Store) withinAccountOnce(ctx context.Context, accountID int64, fn func(tx ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&locked)
	if err != nil {
		return notFound("lock account", err, domain.ErrAccountNotFound)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// pgTx is the ledger view inside WithinAccount.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) SumFilledCash(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return sumCash(ctx, t.tx, accountID)
}

func (t *pgTx) SumFilledSignedQuantity(ctx context.Context, accountID, instrumentID int64) (int64, error) {
	return sumQuantity(ctx, t.tx, accountID, instrumentID)
}

func (t *pgTx) PersistOrder(ctx context.Context, o *domain.Order) error {
	return insertOrder(ctx, t.tx, o)
}
