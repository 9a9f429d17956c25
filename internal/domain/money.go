package domain

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MaxMonetaryValue bounds sizes, amounts and prices accepted from callers.
var MaxMonetaryValue = decimal.NewFromInt(100_000_000)

// CheckPrecision returns an error if d has more than 2 decimal places.
// Trailing zeros are ignored, so 1.100 is accepted.
func CheckPrecision(d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return nil
}

// Round2 rounds d half away from zero to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToFloat converts d, rounded to 2 decimal places, to a float64 for
// presentation. Internal arithmetic never goes through floats.
func ToFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// FormatMoney renders d in the given ISO currency, e.g. "$1,234.56" for USD.
// Unknown currency codes fall back to a plain two-decimal string.
func FormatMoney(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.StringFixed(2) + " " + currency
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
