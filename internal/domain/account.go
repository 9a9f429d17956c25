package domain

import "github.com/shopspring/decimal"

// Account is a brokerage account. It stores no balance: cash and positions
// are always derived from its filled orders.
type Account struct {
	ID            int64
	AccountNumber string
	Email         string
}

// Position is the net share quantity of one instrument held by an account.
type Position struct {
	InstrumentID int64
	Shares       int64
}

// Asset is a valued holding in a portfolio.
type Asset struct {
	Instrument  *Instrument
	Shares      int64
	TotalValue  decimal.Decimal // net amount invested
	Performance decimal.Decimal // percent return against the last close
}

// Portfolio is the valuation of an account at read time.
type Portfolio struct {
	Account       *Account
	CashAvailable decimal.Decimal
	AccountTotal  decimal.Decimal
	Assets        []Asset
}
