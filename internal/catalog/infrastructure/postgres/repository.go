package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow/internal/catalog/application"
	"orderflow/internal/catalog/domain"
	"orderflow/pkg/outbox"
)

// Store implements the catalog's transactional gateway over pgx. Stock rows
// are locked with SELECT ... FOR UPDATE, so concurrent reservations against
// the same product serialize at the row and can never both succeed past
// availability.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			currency    TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stock_items (
			product_id TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
			available  INT NOT NULL CHECK (available >= 0),
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS reservations (
			order_id   TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id             BIGSERIAL PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id   TEXT NOT NULL,
			type           TEXT NOT NULL,
			payload        BYTEA NOT NULL,
			correlation_id TEXT NOT NULL DEFAULT '',
			traceparent    TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'pending',
			relay_id       TEXT,
			lease_until    TIMESTAMPTZ,
			retry_count    INT NOT NULL DEFAULT 0,
			last_error     TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx application.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) FindProduct(ctx context.Context, id string) (domain.Product, *domain.StockItem, error) {
	var p domain.Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price_cents, currency, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, nil, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, nil, err
	}

	item := &domain.StockItem{ProductID: id}
	err = s.pool.QueryRow(ctx, `
		SELECT available, updated_at FROM stock_items WHERE product_id=$1`, id).
		Scan(&item.Available, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, nil, err
	}
	return p, item, nil
}

type storeTx struct {
	tx pgx.Tx
}

func (t *storeTx) MarkReservationProcessed(ctx context.Context, orderID string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO reservations (order_id) VALUES ($1)
		ON CONFLICT (order_id) DO NOTHING`, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *storeTx) Stock(ctx context.Context, productID string) (*domain.StockItem, error) {
	item := &domain.StockItem{ProductID: productID}
	err := t.tx.QueryRow(ctx, `
		SELECT available, updated_at FROM stock_items
		WHERE product_id=$1
		FOR UPDATE`, productID).
		Scan(&item.Available, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (t *storeTx) SaveStock(ctx context.Context, item *domain.StockItem) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE stock_items SET available=$2, updated_at=$3 WHERE product_id=$1`,
		item.ProductID, item.Available, item.UpdatedAt)
	return err
}

func (t *storeTx) InsertStock(ctx context.Context, item *domain.StockItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_items (product_id, available, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (product_id) DO UPDATE SET available=$2, updated_at=$3`,
		item.ProductID, item.Available, item.UpdatedAt)
	return err
}

func (t *storeTx) Product(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, price_cents, currency, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

func (t *storeTx) SaveProduct(ctx context.Context, p domain.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products (id, name, price_cents, currency, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET name=$2, price_cents=$3, currency=$4, updated_at=$6`,
		p.ID, p.Name, p.PriceCents, p.Currency, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *storeTx) DeleteProduct(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return err
}

func (t *storeTx) AppendOutbox(ctx context.Context, d outbox.Draft) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, correlation_id, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		d.AggregateType, d.AggregateID, d.Type, d.Payload, d.CorrelationID, d.Traceparent)
	return err
}
