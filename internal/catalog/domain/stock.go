package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrProductNotFound = errors.New("product not found")

// ErrInvalidQuantity rejects non-positive adjustments and negative absolute sets.
var ErrInvalidQuantity = errors.New("invalid quantity")

// StockItem is the authoritative available quantity for one product. All
// saga and direct mutations go through Reserve/Release/Set; the available
// count never goes negative.
type StockItem struct {
	ProductID string
	Available int
	UpdatedAt time.Time
}

func NewStockItem(productID string, available int) (*StockItem, error) {
	if available < 0 {
		return nil, fmt.Errorf("%w: initial stock %d", ErrInvalidQuantity, available)
	}
	return &StockItem{
		ProductID: productID,
		Available: available,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reserve decrements the available quantity. It fails closed: a non-positive
// quantity or insufficient availability leaves the item untouched.
func (s *StockItem) Reserve(qty int) bool {
	if qty <= 0 || s.Available < qty {
		return false
	}
	s.Available -= qty
	s.UpdatedAt = time.Now().UTC()
	return true
}

// Release restores quantity unconditionally; returning inventory cannot fail.
func (s *StockItem) Release(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release of %d", ErrInvalidQuantity, qty)
	}
	s.Available += qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Set is the administrative absolute-set operation, outside the saga flow.
func (s *StockItem) Set(qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: set to %d", ErrInvalidQuantity, qty)
	}
	s.Available = qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}
