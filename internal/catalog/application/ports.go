package application

import (
	"context"

	"orderflow/internal/catalog/domain"
	"orderflow/pkg/outbox"
)

// Store is the catalog's transactional persistence gateway. One reservation
// attempt (or release, or admin change) runs inside a single transaction:
// stock rows are row-locked for its duration and outbox drafts only become
// publishable when the transaction commits.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// FindProduct is the read-only lookup used by HTTP queries.
	FindProduct(ctx context.Context, id string) (domain.Product, *domain.StockItem, error)
}

type Tx interface {
	// MarkReservationProcessed claims the per-order idempotency slot. It
	// reports false when another (earlier or concurrent) attempt already
	// recorded an outcome for the order.
	MarkReservationProcessed(ctx context.Context, orderID string) (bool, error)

	// Stock loads and row-locks one product's stock.
	// Returns domain.ErrProductNotFound when the product does not exist.
	Stock(ctx context.Context, productID string) (*domain.StockItem, error)
	SaveStock(ctx context.Context, item *domain.StockItem) error

	Product(ctx context.Context, id string) (domain.Product, error)
	SaveProduct(ctx context.Context, p domain.Product) error
	InsertStock(ctx context.Context, item *domain.StockItem) error
	DeleteProduct(ctx context.Context, id string) error

	AppendOutbox(ctx context.Context, d outbox.Draft) error
}
