package application

import (
	"context"
	"encoding/json"

	"orderflow/internal/catalog/domain"
	"orderflow/pkg/events"
	"orderflow/pkg/outbox"
	"orderflow/pkg/tracing"
)

// Product admin operations. Each change commits together with its snapshot
// event so the order service's read model never observes a product state
// that was rolled back.

func (s *Service) CreateProduct(ctx context.Context, p domain.Product, initialStock int, correlationID string) error {
	stock, err := domain.NewStockItem(p.ID, initialStock)
	if err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.SaveProduct(ctx, p); err != nil {
			return err
		}
		if err := tx.InsertStock(ctx, stock); err != nil {
			return err
		}
		return s.appendProductChanged(ctx, tx, events.TypeProductCreated, p, stock, correlationID)
	})
}

// SetStock is the administrative absolute set; it bypasses the reserve path
// but runs through the same row lock so it cannot race a reservation.
func (s *Service) SetStock(ctx context.Context, productID string, qty int, correlationID string) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.Product(ctx, productID)
		if err != nil {
			return err
		}
		item, err := tx.Stock(ctx, productID)
		if err != nil {
			return err
		}
		if err := item.Set(qty); err != nil {
			return err
		}
		if err := tx.SaveStock(ctx, item); err != nil {
			return err
		}
		return s.appendProductChanged(ctx, tx, events.TypeProductUpdated, p, item, correlationID)
	})
}

func (s *Service) DeleteProduct(ctx context.Context, productID, correlationID string) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Product(ctx, productID); err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, productID); err != nil {
			return err
		}
		payload, err := json.Marshal(events.ProductDeleted{
			ProductID:     productID,
			CorrelationID: correlationID,
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(ctx, outbox.Draft{
			AggregateType: "product",
			AggregateID:   productID,
			Type:          events.TypeProductDeleted,
			Payload:       payload,
			CorrelationID: correlationID,
			Traceparent:   tracing.Traceparent(ctx),
		})
	})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, *domain.StockItem, error) {
	return s.store.FindProduct(ctx, id)
}

func (s *Service) appendProductChanged(ctx context.Context, tx Tx, eventType string, p domain.Product, stock *domain.StockItem, correlationID string) error {
	payload, err := json.Marshal(events.ProductChanged{
		ProductID:     p.ID,
		CorrelationID: correlationID,
		Name:          p.Name,
		PriceCents:    p.PriceCents,
		Currency:      p.Currency,
		StockQuantity: stock.Available,
		IsAvailable:   stock.Available > 0,
	})
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, outbox.Draft{
		AggregateType: "product",
		AggregateID:   p.ID,
		Type:          eventType,
		Payload:       payload,
		CorrelationID: correlationID,
		Traceparent:   tracing.Traceparent(ctx),
	})
}
