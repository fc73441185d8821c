package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"orderflow/internal/catalog/application"
	"orderflow/internal/catalog/domain"
	"orderflow/pkg/events"
	"orderflow/pkg/idempotency"
)

// NewOrderEventsConsumer wires the order-service event stream into the
// reservation coordinator: OrderCreated attempts reservation, OrderCancelled
// releases committed stock. The dispatch table is fixed at construction.
func NewOrderEventsConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store, dlq *events.DeadLetter) *events.Consumer {
	router := events.NewRouter()

	router.Register(events.TypeOrderCreated, func(ctx context.Context, payload []byte) error {
		var ev events.OrderCreated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		req := domain.ReservationRequest{
			OrderID:       ev.OrderID,
			CorrelationID: ev.CorrelationID,
			Items:         make([]domain.RequestedItem, 0, len(ev.Items)),
		}
		for _, item := range ev.Items {
			req.Items = append(req.Items, domain.RequestedItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}
		return svc.ReserveStock(ctx, req)
	})

	router.Register(events.TypeOrderCancelled, func(ctx context.Context, payload []byte) error {
		var ev events.OrderCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		items := make([]domain.RequestedItem, 0, len(ev.Items))
		for _, item := range ev.Items {
			items = append(items, domain.RequestedItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}
		return svc.ReleaseStock(ctx, ev.OrderID, ev.CorrelationID, items)
	})

	return events.NewConsumer(log, brokers, topic, group, router, idem, dlq)
}
