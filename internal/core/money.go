// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing, rounding and percentage math go
// through shopspring/decimal so no value ever passes through a float.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents caps a single amount at 999,999,999.99.
const MaxAmountCents int64 = 99_999_999_999

// Money is an amount in cents of the owning user's currency.
type Money struct {
	Cents int64
}

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.New(MaxAmountCents, -2)
)

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// on the third decimal place. Only positive amounts are accepted.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,345") -> 1235 cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MoneyFromDecimal rounds d half-up to cents. Magnitudes above the amount
// cap give ErrAmountTooLarge.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	d = d.Round(2)
	if d.Abs().GreaterThan(maxAmount) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: roundCents(d)}, nil
}

func roundCents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(hundred).IntPart()
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the amount as a float64 for display and charting only.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// DivideBy splits m into n equal parts rounded half-up; zero when n is 0.
func (m Money) DivideBy(n int) Money {
	if n == 0 {
		return Money{}
	}
	return Money{Cents: roundCents(m.Decimal().Div(decimal.NewFromInt(int64(n))))}
}

// Percentage returns part/whole*100 rounded to 2 places; 0 when whole is 0.
func Percentage(part, whole Money) float64 {
	return ratio(part, whole).Round(2).InexactFloat64()
}

// ratio is the unrounded part/whole*100.
func ratio(part, whole Money) decimal.Decimal {
	if whole.Cents == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part.Cents).
		Div(decimal.NewFromInt(whole.Cents)).
		Mul(hundred)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	raw := strings.Trim(string(b), `"`)
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return fmt.Errorf("%w: %s", err, raw)
	}
	*m = v
	return nil
}
