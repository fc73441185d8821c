package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"orderflow/internal/order/domain"
	"orderflow/pkg/events"
	"orderflow/pkg/outbox"
	"orderflow/pkg/tracing"
)

type Service struct {
	log       *slog.Logger
	repo      Repository
	snapshots SnapshotStore
}

func NewService(log *slog.Logger, repo Repository, snapshots SnapshotStore) *Service {
	return &Service{log: log, repo: repo, snapshots: snapshots}
}

type CreateOrderCommand struct {
	CustomerID    string
	CustomerEmail string
	Address       domain.Address
	Items         []CreateOrderItem
	Notes         string
}

type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

// CreateOrder builds the order from read-model snapshots, submits it and
// commits it together with the OrderCreated event. The correlation id minted
// here follows the whole saga.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		snap, err := s.snapshots.Get(ctx, it.ProductID)
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
		}
		if err != nil {
			return nil, err
		}
		price, err := domain.NewMoney(snap.PriceCents, snap.Currency)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: snap.Name,
			UnitPrice:   price,
			Quantity:    it.Quantity,
		})
	}

	o, err := domain.NewOrder(uuid.New().String(), cmd.CustomerID, cmd.CustomerEmail, cmd.Address, items, cmd.Notes)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New().String()
	if err := o.Submit(correlationID); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("order submitted", "order_id", o.ID, "correlation_id", correlationID, "total", o.Total.String())
	return o, nil
}

// HandleStockReserved transitions the order and immediately confirms it.
// An order row not yet visible means the outcome raced ahead of the local
// Submit commit; the message must stay redeliverable.
func (s *Service) HandleStockReserved(ctx context.Context, ev events.StockReserved) error {
	o, err := s.repo.Get(ctx, ev.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return events.Retryable(err)
	}
	if err != nil {
		return err
	}
	if err := o.MarkStockReserved(); err != nil {
		return err
	}
	if err := o.Confirm(ev.CorrelationID); err != nil {
		return err
	}
	if err := s.commit(ctx, o); err != nil {
		return err
	}
	s.log.Info("order confirmed", "order_id", o.ID, "correlation_id", ev.CorrelationID)
	return nil
}

func (s *Service) HandleStockReservationFailed(ctx context.Context, ev events.StockReservationFailed) error {
	o, err := s.repo.Get(ctx, ev.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return events.Retryable(err)
	}
	if err != nil {
		return err
	}
	if err := o.MarkStockReservationFailed(ev.Reason); err != nil {
		return err
	}
	if err := s.commit(ctx, o); err != nil {
		return err
	}
	s.log.Info("order reservation failed", "order_id", o.ID, "reason", ev.Reason)
	return nil
}

// CancelOrder cancels on behalf of the customer. Whether an OrderCancelled
// release event goes out is decided by the aggregate, based on how far the
// saga got.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := o.Cancel(reason, uuid.New().String()); err != nil {
		return err
	}
	if err := s.commit(ctx, o); err != nil {
		return err
	}
	s.log.Info("order cancelled", "order_id", o.ID, "reason", reason)
	return nil
}

// ExpirePending cancels an order still waiting on a reservation outcome. An
// outcome that landed since the caller observed the order wins: nothing
// happens unless the order is still Pending, and the save's status
// precondition rejects an outcome racing in after the load.
func (s *Service) ExpirePending(ctx context.Context, orderID, reason string) (bool, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != domain.StatusPending {
		return false, nil
	}
	if err := o.Cancel(reason, uuid.New().String()); err != nil {
		return false, err
	}
	if err := s.commit(ctx, o); err != nil {
		return false, err
	}
	s.log.Info("pending order expired", "order_id", o.ID, "reason", reason)
	return true, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// commit persists the aggregate with its raised events as outbox drafts and
// clears the buffer only once the transaction is through.
func (s *Service) commit(ctx context.Context, o *domain.Order) error {
	drafts, err := s.drafts(ctx, o)
	if err != nil {
		return err
	}
	if err := s.repo.SaveWithOutbox(ctx, o, drafts); err != nil {
		return err
	}
	o.ClearEvents()
	return nil
}

// drafts maps buffered domain events onto integration events.
func (s *Service) drafts(ctx context.Context, o *domain.Order) ([]outbox.Draft, error) {
	pending := o.PendingEvents()
	out := make([]outbox.Draft, 0, len(pending))
	traceparent := tracing.Traceparent(ctx)

	for _, ev := range pending {
		var (
			payload       []byte
			eventType     string
			correlationID string
			err           error
		)
		switch e := ev.(type) {
		case domain.Submitted:
			correlationID = e.CorrelationID
			eventType = events.TypeOrderCreated
			payload, err = json.Marshal(orderCreated(o, e.CorrelationID))
		case domain.Confirmed:
			correlationID = e.CorrelationID
			eventType = events.TypeOrderConfirmed
			payload, err = json.Marshal(events.OrderConfirmed{
				OrderID:       o.ID,
				CorrelationID: e.CorrelationID,
				CustomerID:    o.CustomerID,
				TotalCents:    o.Total.Cents,
				Currency:      o.Total.Currency,
			})
		case domain.Cancelled:
			correlationID = e.CorrelationID
			eventType = events.TypeOrderCancelled
			payload, err = json.Marshal(orderCancelled(o, e))
		default:
			return nil, fmt.Errorf("unmapped domain event %q", ev.EventType())
		}
		if err != nil {
			return nil, err
		}
		out = append(out, outbox.Draft{
			AggregateType: "order",
			AggregateID:   o.ID,
			Type:          eventType,
			Payload:       payload,
			CorrelationID: correlationID,
			Traceparent:   traceparent,
		})
	}
	return out, nil
}

func orderCreated(o *domain.Order, correlationID string) events.OrderCreated {
	items := make([]events.OrderCreatedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.OrderCreatedItem{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			UnitPriceCents: it.UnitPrice.Cents,
			Currency:       it.UnitPrice.Currency,
			Quantity:       it.Quantity,
		})
	}
	return events.OrderCreated{
		OrderID:       o.ID,
		CorrelationID: correlationID,
		CustomerID:    o.CustomerID,
		TotalCents:    o.Total.Cents,
		Currency:      o.Total.Currency,
		Items:         items,
	}
}

func orderCancelled(o *domain.Order, e domain.Cancelled) events.OrderCancelled {
	items := make([]events.CancelledItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.CancelledItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return events.OrderCancelled{
		OrderID:       o.ID,
		CorrelationID: e.CorrelationID,
		CustomerID:    o.CustomerID,
		Reason:        e.Reason,
		Items:         items,
	}
}
