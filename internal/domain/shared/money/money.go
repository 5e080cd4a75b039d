package money

import (
	"errors"
	"math"
	"strings"
)

var ErrInvalidCurrency = errors.New("money: invalid currency code")

// Money keeps amounts in integer minor units (cents) to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Scale multiplies by a real factor and rounds half away from zero.
func (m Money) Scale(factor float64) Money {
	return Money{Amount: RoundCents(float64(m.Amount) * factor), Currency: m.Currency}
}

// Clamp bounds the amount by optional min and max. min is applied first, so
// with min > max the result is max. The flag reports whether anything changed.
func (m Money) Clamp(min, max *int64) (Money, bool) {
	amount := m.Amount
	if min != nil && amount < *min {
		amount = *min
	}
	if max != nil && amount > *max {
		amount = *max
	}
	return Money{Amount: amount, Currency: m.Currency}, amount != m.Amount
}

// RoundCents rounds to the nearest whole minor unit, halves away from zero.
func RoundCents(v float64) int64 {
	return int64(math.Round(v))
}
