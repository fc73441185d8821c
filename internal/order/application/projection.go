package application

import (
	"context"
	"log/slog"

	"orderflow/pkg/events"
)

// Projection keeps the product read-model snapshot in step with catalog
// events. The snapshot is display/pricing data only; reservation authority
// stays with the catalog's ledger.
type Projection struct {
	log       *slog.Logger
	snapshots SnapshotStore
}

func NewProjection(log *slog.Logger, snapshots SnapshotStore) *Projection {
	return &Projection{log: log, snapshots: snapshots}
}

func (p *Projection) HandleProductChanged(ctx context.Context, ev events.ProductChanged) error {
	err := p.snapshots.Put(ctx, ProductSnapshot{
		ProductID:     ev.ProductID,
		Name:          ev.Name,
		PriceCents:    ev.PriceCents,
		Currency:      ev.Currency,
		StockQuantity: ev.StockQuantity,
		IsAvailable:   ev.IsAvailable,
	})
	if err != nil {
		return err
	}
	p.log.Debug("product snapshot updated", "product_id", ev.ProductID)
	return nil
}

func (p *Projection) HandleProductDeleted(ctx context.Context, ev events.ProductDeleted) error {
	if err := p.snapshots.Delete(ctx, ev.ProductID); err != nil {
		return err
	}
	p.log.Debug("product snapshot removed", "product_id", ev.ProductID)
	return nil
}
