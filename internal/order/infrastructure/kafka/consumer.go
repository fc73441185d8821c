package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"orderflow/internal/order/application"
	"orderflow/pkg/events"
	"orderflow/pkg/idempotency"
)

// NewSagaConsumer wires the catalog's outcome events into the order state
// machine.
func NewSagaConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store, dlq *events.DeadLetter) *events.Consumer {
	router := events.NewRouter()

	router.Register(events.TypeStockReserved, func(ctx context.Context, payload []byte) error {
		var ev events.StockReserved
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return svc.HandleStockReserved(ctx, ev)
	})

	router.Register(events.TypeStockReservationFailed, func(ctx context.Context, payload []byte) error {
		var ev events.StockReservationFailed
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return svc.HandleStockReservationFailed(ctx, ev)
	})

	return events.NewConsumer(log, brokers, topic, group, router, idem, dlq)
}

// NewProductsConsumer feeds the product read-model snapshot from the
// catalog's product event stream.
func NewProductsConsumer(log *slog.Logger, brokers []string, topic, group string, proj *application.Projection, idem *idempotency.Store, dlq *events.DeadLetter) *events.Consumer {
	router := events.NewRouter()

	changed := func(ctx context.Context, payload []byte) error {
		var ev events.ProductChanged
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return proj.HandleProductChanged(ctx, ev)
	}
	router.Register(events.TypeProductCreated, changed)
	router.Register(events.TypeProductUpdated, changed)

	router.Register(events.TypeProductDeleted, func(ctx context.Context, payload []byte) error {
		var ev events.ProductDeleted
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return proj.HandleProductDeleted(ctx, ev)
	})

	return events.NewConsumer(log, brokers, topic, group, router, idem, dlq)
}
