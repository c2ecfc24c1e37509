// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing and formatting go through
// shopspring/decimal so that input like "12.345" or "1e2" is handled
// consistently before it is reduced to two fraction digits.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point amount with two fraction digits.
type Money struct {
	Cents int64
}

var ErrInvalidAmount = errors.New("invalid amount")

var maxCents = decimal.NewFromInt(1<<63 - 1)

// ParseMoney converts a decimal string to Money with half-up rounding on the
// third fraction digit.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Negative values
// are rejected: the transaction type carries the direction.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,34")  -> 1234 cents
//	ParseMoney("12.345") -> 1235 cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return moneyFromDecimal(d)
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

var ErrAmountOverflow = errors.New("amount overflows int64 cents")

// CheckedAdd is Add that fails instead of wrapping around.
func (m Money) CheckedAdd(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: sum}, nil
}

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Decimal returns the amount as a decimal with exponent -2.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two fraction digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a decimal string to avoid float rounding
// on the client side.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
