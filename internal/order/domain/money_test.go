package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(1050, "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	if m.Cents != 1050 || m.Currency != "USD" {
		t.Errorf("unexpected money %+v", m)
	}

	if _, err := NewMoney(-1, "USD"); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
	if _, err := NewMoney(100, "US"); !errors.Is(err, ErrBadCurrency) {
		t.Errorf("expected ErrBadCurrency, got %v", err)
	}
}

func TestMoneyAdd(t *testing.T) {
	a, _ := NewMoney(1000, "USD")
	b, _ := NewMoney(2000, "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Cents != 3000 {
		t.Errorf("expected 3000, got %d", sum.Cents)
	}

	eur, _ := NewMoney(500, "EUR")
	if _, err := a.Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestMoneyMul(t *testing.T) {
	m, _ := NewMoney(1000, "USD")

	doubled, err := m.Mul(2)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	if doubled.Cents != 2000 {
		t.Errorf("expected 2000, got %d", doubled.Cents)
	}

	if _, err := m.Mul(-1); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestMoneyOverflow(t *testing.T) {
	big, _ := NewMoney(math.MaxInt64/2+1, "USD")

	if _, err := big.Mul(2); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow from Mul, got %v", err)
	}
	if _, err := big.Add(big); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow from Add, got %v", err)
	}

	zero, _ := NewMoney(0, "USD")
	if got, err := big.Mul(0); err != nil || got != zero {
		t.Errorf("multiplying by zero must succeed, got %+v err %v", got, err)
	}
}

func TestMoneyEqualityByValue(t *testing.T) {
	a, _ := NewMoney(500, "USD")
	b, _ := NewMoney(500, "USD")
	if a != b {
		t.Error("expected equal money values to compare equal")
	}
}
