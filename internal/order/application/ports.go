package application

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/order/domain"
	"orderflow/pkg/outbox"
)

// ErrUnknownProduct means the read model has no snapshot for a requested
// product; the order cannot price it and is rejected before submission.
var ErrUnknownProduct = errors.New("unknown product")

var ErrSnapshotNotFound = errors.New("product snapshot not found")

// Repository persists the aggregate and its outbox drafts in one
// transaction. A failed commit must leave no event publishable.
type Repository interface {
	SaveWithOutbox(ctx context.Context, o *domain.Order, drafts []outbox.Draft) error
	Get(ctx context.Context, id string) (*domain.Order, error)

	// StalePendingIDs lists orders stuck in Pending since before the cutoff,
	// for the reaper.
	StalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// ProductSnapshot is the denormalized, eventually consistent copy of a
// catalog product. Display and order-item pricing only; never consulted for
// reservation decisions.
type ProductSnapshot struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"priceCents"`
	Currency      string `json:"currency"`
	StockQuantity int    `json:"stockQuantity"`
	IsAvailable   bool   `json:"isAvailable"`
}

type SnapshotStore interface {
	Put(ctx context.Context, snap ProductSnapshot) error
	Get(ctx context.Context, productID string) (ProductSnapshot, error)
	Delete(ctx context.Context, productID string) error
}
