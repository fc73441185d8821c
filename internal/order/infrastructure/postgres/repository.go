package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow/internal/order/domain"
	"orderflow/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id             TEXT PRIMARY KEY,
			customer_id    TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			street         TEXT NOT NULL,
			city           TEXT NOT NULL,
			state          TEXT NOT NULL,
			country        TEXT NOT NULL,
			zip            TEXT NOT NULL,
			status         TEXT NOT NULL,
			total_cents    BIGINT NOT NULL,
			currency       TEXT NOT NULL,
			notes          TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS order_items (
			order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id       TEXT NOT NULL,
			product_name     TEXT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			currency         TEXT NOT NULL,
			quantity         INT NOT NULL CHECK (quantity > 0),
			PRIMARY KEY (order_id, product_id)
		);
		CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders (status, created_at);
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

// SaveWithOutbox writes the aggregate and its staged events in one
// transaction. Nothing is publishable unless this commit goes through. The
// update only lands if the row still holds the status this instance was
// loaded with; a concurrent writer invalidating that precondition makes the
// save a StateError, and the in-memory transitions plus drafts are discarded.
func (r *Repository) SaveWithOutbox(ctx context.Context, o *domain.Order, drafts []outbox.Draft) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, customer_email, street, city, state, country, zip,
			status, total_cents, currency, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET status=$9, notes=$12, updated_at=$14
		WHERE orders.status=$15`,
		o.ID, o.CustomerID, o.CustomerEmail,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.Country, o.ShippingAddress.Zip,
		string(o.Status), o.Total.Cents, o.Total.Currency, o.Notes, o.CreatedAt, o.UpdatedAt,
		string(o.LoadedStatus()))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &domain.StateError{Op: "save", Status: o.LoadedStatus()}
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, product_name, unit_price_cents, currency, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			o.ID, item.ProductID, item.ProductName, item.UnitPrice.Cents, item.UnitPrice.Currency, item.Quantity)
	}
	for _, d := range drafts {
		batch.Queue(`
			INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, correlation_id, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
			d.AggregateType, d.AggregateID, d.Type, d.Payload, d.CorrelationID, d.Traceparent)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, customer_email, street, city, state, country, zip,
			status, total_cents, currency, notes, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.CustomerEmail,
			&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
			&o.ShippingAddress.Country, &o.ShippingAddress.Zip,
			&status, &o.Total.Cents, &o.Total.Currency, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, product_name, unit_price_cents, currency, quantity
		FROM order_items WHERE order_id=$1
		ORDER BY product_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice.Cents, &item.UnitPrice.Currency, &item.Quantity); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.Rehydrate(o), nil
}

func (r *Repository) StalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM orders
		WHERE status=$1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`, string(domain.StatusPending), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
