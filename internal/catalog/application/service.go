package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"orderflow/internal/catalog/domain"
	"orderflow/pkg/events"
	"orderflow/pkg/outbox"
	"orderflow/pkg/tracing"
)

// errDuplicateRequest aborts an attempt whose order already has an outcome.
var errDuplicateRequest = errors.New("reservation already processed")

// reservationFailure carries the first failing item's reason out of the
// reservation transaction so the failure outcome can be recorded separately.
type reservationFailure struct {
	reason string
}

func (f *reservationFailure) Error() string { return f.reason }

type Service struct {
	log   *slog.Logger
	store Store
}

func NewService(log *slog.Logger, store Store) *Service {
	return &Service{log: log, store: store}
}

// ReserveStock runs one reservation attempt for an order. Items are tried in
// request order; the first failure wins and everything reserved so far is
// released before the transaction is discarded. Exactly one outcome event is
// committed per order: the reservations row claimed inside the transaction
// guards against redelivered OrderCreated events double-reserving stock.
func (s *Service) ReserveStock(ctx context.Context, req domain.ReservationRequest) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		claimed, err := tx.MarkReservationProcessed(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !claimed {
			return errDuplicateRequest
		}

		outcome, err := s.tryReserve(ctx, tx, req)
		if err != nil {
			return err
		}
		if outcome.Failed() {
			return &reservationFailure{reason: outcome.Reason}
		}

		return s.appendOutcome(ctx, tx, req, outcome)
	})

	var failure *reservationFailure
	switch {
	case err == nil:
		s.log.Info("stock reserved", "order_id", req.OrderID, "correlation_id", req.CorrelationID)
		return nil
	case errors.Is(err, errDuplicateRequest):
		s.log.Info("duplicate reservation request skipped", "order_id", req.OrderID)
		return nil
	case errors.As(err, &failure):
		return s.recordFailure(ctx, req, failure.reason)
	default:
		return err
	}
}

// tryReserve walks the line items against row-locked stock. On the first
// failure it releases the quantities already taken in this attempt; the
// surrounding rollback then discards the uncommitted decrements as well.
func (s *Service) tryReserve(ctx context.Context, tx Tx, req domain.ReservationRequest) (domain.Outcome, error) {
	var outcome domain.Outcome
	reserved := make([]*domain.StockItem, 0, len(req.Items))

	for _, line := range req.Items {
		item, err := tx.Stock(ctx, line.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			outcome.Reason = fmt.Sprintf("product not found: %s", line.ProductID)
			break
		}
		if err != nil {
			return outcome, err
		}
		if !item.Reserve(line.Quantity) {
			outcome.Reason = fmt.Sprintf("insufficient stock for product %s", line.ProductID)
			break
		}
		if err := tx.SaveStock(ctx, item); err != nil {
			return outcome, err
		}
		reserved = append(reserved, item)
		outcome.Reserved = append(outcome.Reserved, domain.ReservedItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	if outcome.Failed() {
		for i, item := range reserved {
			if err := item.Release(outcome.Reserved[i].Quantity); err != nil {
				return outcome, err
			}
		}
		outcome.Reserved = nil
	}
	return outcome, nil
}

func (s *Service) appendOutcome(ctx context.Context, tx Tx, req domain.ReservationRequest, outcome domain.Outcome) error {
	products := make([]events.ReservedProduct, 0, len(outcome.Reserved))
	for _, r := range outcome.Reserved {
		products = append(products, events.ReservedProduct{
			ProductID:        r.ProductID,
			QuantityReserved: r.Quantity,
		})
	}
	payload, err := json.Marshal(events.StockReserved{
		OrderID:       req.OrderID,
		CorrelationID: req.CorrelationID,
		Products:      products,
	})
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, outbox.Draft{
		AggregateType: "reservation",
		AggregateID:   req.OrderID,
		Type:          events.TypeStockReserved,
		Payload:       payload,
		CorrelationID: req.CorrelationID,
		Traceparent:   tracing.Traceparent(ctx),
	})
}

// recordFailure durably records the failure outcome in its own transaction.
// No stock rows are touched; the idempotency slot still guards exactly-one.
func (s *Service) recordFailure(ctx context.Context, req domain.ReservationRequest, reason string) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		claimed, err := tx.MarkReservationProcessed(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !claimed {
			return errDuplicateRequest
		}
		payload, err := json.Marshal(events.StockReservationFailed{
			OrderID:       req.OrderID,
			CorrelationID: req.CorrelationID,
			Reason:        reason,
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(ctx, outbox.Draft{
			AggregateType: "reservation",
			AggregateID:   req.OrderID,
			Type:          events.TypeStockReservationFailed,
			Payload:       payload,
			CorrelationID: req.CorrelationID,
			Traceparent:   tracing.Traceparent(ctx),
		})
	})
	if errors.Is(err, errDuplicateRequest) {
		s.log.Info("duplicate reservation request skipped", "order_id", req.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("stock reservation failed", "order_id", req.OrderID, "reason", reason)
	return nil
}

// ReleaseStock is the saga compensation for a cancelled order: every reserved
// quantity goes back to its product. A product deleted since reservation is
// logged and skipped; there is nothing left to restore it to.
func (s *Service) ReleaseStock(ctx context.Context, orderID, correlationID string, items []domain.RequestedItem) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		for _, line := range items {
			item, err := tx.Stock(ctx, line.ProductID)
			if errors.Is(err, domain.ErrProductNotFound) {
				s.log.Warn("release for missing product skipped", "order_id", orderID, "product_id", line.ProductID)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Release(line.Quantity); err != nil {
				return err
			}
			if err := tx.SaveStock(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("stock released", "order_id", orderID, "correlation_id", correlationID, "items", len(items))
	return nil
}
