package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:embed seed.json
var defaultSeed []byte

// Seed is the reference data and order history a backend starts from.
type Seed struct {
	Instruments []SeedInstrument `json:"instruments"`
	Quotes      []SeedQuote      `json:"quotes"`
	Accounts    []SeedAccount    `json:"accounts"`
	Orders      []SeedOrder      `json:"orders"`
}

type SeedInstrument struct {
	Ticker string                `json:"ticker"`
	Name   string                `json:"name"`
	Type   domain.InstrumentType `json:"type"`
}

type SeedQuote struct {
	Ticker        string          `json:"ticker"`
	Date          string          `json:"date"` // YYYY-MM-DD
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	PreviousClose decimal.Decimal `json:"previous_close"`
}

type SeedAccount struct {
	AccountNumber string `json:"account_number"`
	Email         string `json:"email"`
}

// SeedOrder is a historical ledger entry. It is loaded as is, without
// admission checks.
type SeedOrder struct {
	AccountNumber string             `json:"account_number"`
	Ticker        string             `json:"ticker"`
	Type          domain.OrderType   `json:"type"`
	Side          domain.OrderSide   `json:"side"`
	Size          int64              `json:"size"`
	Price         decimal.Decimal    `json:"price"`
	Status        domain.OrderStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
}

// QuoteDate parses the quote's trading day.
func (q SeedQuote) QuoteDate() (time.Time, error) {
	d, err := time.Parse(time.DateOnly, q.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("quote %s: invalid date %q: %w", q.Ticker, q.Date, err)
	}
	return d, nil
}

// DecodeSeed reads a JSON seed document.
func DecodeSeed(r io.Reader) (*Seed, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var s Seed
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &s, nil
}

// LoadSeed reads the seed at path, or the built-in sample data when path
// is empty.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return DecodeSeed(bytes.NewReader(defaultSeed))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// Apply loads the seed into the in-memory backend.
func (m *Memory) Apply(s *Seed) error {
	for _, si := range s.Instruments {
		if err := m.Instruments.Create(&domain.Instrument{
			Ticker: si.Ticker,
			Name:   si.Name,
			Type:   si.Type,
		}); err != nil {
			return fmt.Errorf("seed instrument: %w", err)
		}
	}

	for _, sq := range s.Quotes {
		inst, err := m.Instruments.FindByTicker(sq.Ticker)
		if err != nil {
			return fmt.Errorf("seed quote %s: %w", sq.Ticker, err)
		}
		date, err := sq.QuoteDate()
		if err != nil {
			return err
		}
		m.Quotes.Upsert(&domain.MarketQuote{
			InstrumentID:  inst.ID,
			Date:          date,
			Open:          sq.Open,
			High:          sq.High,
			Low:           sq.Low,
			Close:         sq.Close,
			PreviousClose: sq.PreviousClose,
		})
	}

	for _, sa := range s.Accounts {
		if err := m.Accounts.Create(&domain.Account{
			AccountNumber: sa.AccountNumber,
			Email:         sa.Email,
		}); err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
	}

	for _, so := range s.Orders {
		acct, err := m.Accounts.FindByNumber(so.AccountNumber)
		if err != nil {
			return fmt.Errorf("seed order for %s: %w", so.AccountNumber, err)
		}
		inst, err := m.Instruments.FindByTicker(so.Ticker)
		if err != nil {
			return fmt.Errorf("seed order %s: %w", so.Ticker, err)
		}
		m.Orders.Create(&domain.Order{
			ID:           uuid.NewString(),
			AccountID:    acct.ID,
			InstrumentID: inst.ID,
			Instrument:   inst,
			Type:         so.Type,
			Side:         so.Side,
			Size:         so.Size,
			Price:        so.Price,
			Status:       so.Status,
			CreatedAt:    so.CreatedAt.UTC().Truncate(time.Second),
		})
	}
	return nil
}
