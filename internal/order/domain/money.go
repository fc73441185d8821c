package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrAmountOverflow   = errors.New("amount overflow")
	ErrBadCurrency      = errors.New("currency must be a 3-letter code")
)

// Money is an immutable amount in a single currency, held in cents.
// Arithmetic is defined only within one currency and never yields a
// negative result.
type Money struct {
	Cents    int64
	Currency string
}

func NewMoney(cents int64, currency string) (Money, error) {
	if cents < 0 {
		return Money{}, fmt.Errorf("%w: %d", ErrNegativeAmount, cents)
	}
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("%w: %q", ErrBadCurrency, currency)
	}
	return Money{Cents: cents, Currency: currency}, nil
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	if m.Cents > math.MaxInt64-other.Cents {
		return Money{}, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, m.Cents, other.Cents)
	}
	return Money{Cents: m.Cents + other.Cents, Currency: m.Currency}, nil
}

func (m Money) Mul(qty int) (Money, error) {
	if qty < 0 {
		return Money{}, fmt.Errorf("%w: multiplier %d", ErrNegativeAmount, qty)
	}
	if qty > 0 && m.Cents > math.MaxInt64/int64(qty) {
		return Money{}, fmt.Errorf("%w: %d * %d", ErrAmountOverflow, m.Cents, qty)
	}
	return Money{Cents: m.Cents * int64(qty), Currency: m.Currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Cents/100, m.Cents%100, m.Currency)
}
