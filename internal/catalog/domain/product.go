package domain

import "time"

// Product is the catalog's registry entry. The order service only ever sees
// it through ProductCreated/Updated snapshot events.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Currency   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewProduct(id, name string, priceCents int64, currency string) Product {
	now := time.Now().UTC()
	return Product{
		ID:         id,
		Name:       name,
		PriceCents: priceCents,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
