package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApplySeed upserts the seed's instruments, quotes and accounts in one
// transaction. Historical orders are inserted only for accounts whose
// ledger is still empty, so applying the same seed twice is harmless.
func (s *Store) ApplySeed(ctx context.Context, seed *store.Seed) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	instruments := make(map[string]int64, len(seed.Instruments))
	for _, si := range seed.Instruments {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO instruments (ticker, name, type) VALUES ($1, $2, $3)
			 ON CONFLICT (ticker) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type
			 RETURNING id`,
			si.Ticker, si.Name, si.Type,
		).Scan(&id)
		if err != nil {
			return storageErr("seed instrument "+si.Ticker, err)
		}
		instruments[si.Ticker] = id
	}

	for _, sq := range seed.Quotes {
		id, ok := instruments[sq.Ticker]
		if !ok {
			return fmt.Errorf("seed quote %s: %w", sq.Ticker, domain.ErrInstrumentNotFound)
		}
		date, err := sq.QuoteDate()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO marketdata (instrument_id, date, open, high, low, close, previous_close)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (instrument_id, date) DO UPDATE SET
			     open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			     close = EXCLUDED.close, previous_close = EXCLUDED.previous_close`,
			id, date, sq.Open.String(), sq.High.String(), sq.Low.String(),
			sq.Close.String(), sq.PreviousClose.String(),
		)
		if err != nil {
			return storageErr("seed quote "+sq.Ticker, err)
		}
	}

	accounts := make(map[string]int64, len(seed.Accounts))
	fresh := make(map[int64]bool, len(seed.Accounts))
	for _, sa := range seed.Accounts {
		var (
			id      int64
			entries int64
		)
		err := tx.QueryRow(ctx,
			`INSERT INTO accounts (account_number, email) VALUES ($1, $2)
			 ON CONFLICT (account_number) DO UPDATE SET email = EXCLUDED.email
			 RETURNING id, (SELECT COUNT(*) FROM orders WHERE account_id = accounts.id)`,
			sa.AccountNumber, sa.Email,
		).Scan(&id, &entries)
		if err != nil {
			return storageErr("seed account "+sa.AccountNumber, err)
		}
		accounts[sa.AccountNumber] = id
		fresh[id] = entries == 0
	}

	for _, so := range seed.Orders {
		accountID, ok := accounts[so.AccountNumber]
		if !ok {
			return fmt.Errorf("seed order for %s: %w", so.AccountNumber, domain.ErrAccountNotFound)
		}
		if !fresh[accountID] {
			continue
		}
		instrumentID, ok := instruments[so.Ticker]
		if !ok {
			return fmt.Errorf("seed order %s: %w", so.Ticker, domain.ErrInstrumentNotFound)
		}
		err := insertOrder(ctx, tx, &domain.Order{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			InstrumentID: instrumentID,
			Type:         so.Type,
			Side:         so.Side,
			Size:         so.Size,
			Price:        so.Price,
			Status:       so.Status,
			CreatedAt:    so.CreatedAt.UTC().Truncate(time.Second),
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit seed", err)
	}
	return nil
}
