package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentType is the kind of a tradable instrument.
type InstrumentType string

const (
	InstrumentTypeStock    InstrumentType = "STOCK"
	InstrumentTypeCurrency InstrumentType = "CURRENCY"
)

// DefaultSettlementTicker is the ticker of the instrument that represents cash.
const DefaultSettlementTicker = "ARS"

// Instrument is immutable reference data identified by its ticker.
type Instrument struct {
	ID          int64
	Ticker      string
	Name        string
	Type        InstrumentType
	LatestQuote *MarketQuote // nil when no quote is known or not loaded
}

// IsStock reports whether shares of the instrument can be bought or sold.
func (i *Instrument) IsStock() bool {
	return i.Type == InstrumentTypeStock
}

// LastClose returns the close price of the latest quote, or (0, false)
// when no quote is attached.
func (i *Instrument) LastClose() (decimal.Decimal, bool) {
	if i.LatestQuote == nil {
		return decimal.Zero, false
	}
	return i.LatestQuote.Close, true
}

// MarketQuote is one trading day of prices for an instrument.
type MarketQuote struct {
	ID            int64
	InstrumentID  int64
	Date          time.Time // day precision, UTC
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	PreviousClose decimal.Decimal
}

// SettlementPrice is the unit price of every cash order.
var SettlementPrice = decimal.NewFromInt(1)
