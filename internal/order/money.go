package order

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is a fiat amount in a single ISO 4217 currency.
//
// The zero Money has no currency and a zero amount; it compares equal only
// to itself.
type Money struct {
	Currency string
	Amount   decimal.Decimal
}

// NewMoney validates code as an ISO currency and returns the amount in it.
func NewMoney(code string, amount decimal.Decimal) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("parse currency %q: %w", code, err)
	}
	return Money{Currency: unit.String(), Amount: amount}, nil
}

// ParseMoney parses a decimal string amount in the given currency.
func ParseMoney(code, amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return NewMoney(code, d)
}

// MustMoney is ParseMoney for literals in tests and fixtures.
func MustMoney(code, amount string) Money {
	m, err := ParseMoney(code, amount)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in code. An invalid code yields the zero Money.
func Zero(code string) Money {
	m, err := NewMoney(code, decimal.Zero)
	if err != nil {
		return Money{}
	}
	return m
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// Equal reports whether m and o have the same currency and numeric value.
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// LessThan compares amounts. Amounts in different currencies never compare
// less than each other.
func (m Money) LessThan(o Money) bool {
	return m.Currency == o.Currency && m.Amount.LessThan(o.Amount)
}

// GreaterThan compares amounts. See LessThan for mixed currencies.
func (m Money) GreaterThan(o Money) bool {
	return m.Currency == o.Currency && m.Amount.GreaterThan(o.Amount)
}

// String formats the amount with the currency's standard minor-unit scale.
func (m Money) String() string {
	if m.Currency == "" {
		return m.Amount.String()
	}
	scale := 2
	if unit, err := currency.ParseISO(m.Currency); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return m.Amount.StringFixed(int32(scale)) + " " + m.Currency
}

type moneyJSON struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// MarshalJSON encodes the amount as a decimal string to avoid float loss.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Currency: m.Currency, Amount: m.Amount.String()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(b []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Currency == "" {
		*m = Money{}
		if raw.Amount == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw.Amount)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", raw.Amount, err)
		}
		m.Amount = d
		return nil
	}
	parsed, err := ParseMoney(raw.Currency, raw.Amount)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
