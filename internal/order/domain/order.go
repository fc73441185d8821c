package domain

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusDraft                  OrderStatus = "draft"
	StatusPending                OrderStatus = "pending"
	StatusStockReserved          OrderStatus = "stock_reserved"
	StatusConfirmed              OrderStatus = "confirmed"
	StatusProcessing             OrderStatus = "processing"
	StatusShipped                OrderStatus = "shipped"
	StatusDelivered              OrderStatus = "delivered"
	StatusCancelled              OrderStatus = "cancelled"
	StatusStockReservationFailed OrderStatus = "stock_reservation_failed"
)

type Address struct {
	Street  string
	City    string
	State   string
	Country string
	Zip     string
}

func (a Address) validate() error {
	if a.Street == "" || a.City == "" || a.State == "" || a.Country == "" || a.Zip == "" {
		return errors.New("shipping address requires street, city, state, country and zip")
	}
	return nil
}

// OrderItem snapshots the product name and unit price at submission time;
// later catalog changes never rewrite an existing order.
type OrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   Money
	Quantity    int
}

func (i OrderItem) TotalPrice() (Money, error) {
	return i.UnitPrice.Mul(i.Quantity)
}

// Order is the aggregate root of the order service. Status moves only
// through the transitions below; anything else is a StateError. Orders are
// never deleted, cancellation is a status change.
type Order struct {
	ID              string
	CustomerID      string
	CustomerEmail   string
	ShippingAddress Address
	Status          OrderStatus
	Items           []OrderItem
	Total           Money
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	pending      []Event
	loadedStatus OrderStatus
}

// NewOrder builds a draft order, validating items and deriving the total.
// Items must share one currency; a mixed-currency order is rejected here,
// before anything is persisted.
func NewOrder(id, customerID, customerEmail string, addr Address, items []OrderItem, notes string) (*Order, error) {
	if id == "" || customerID == "" || customerEmail == "" {
		return nil, errors.New("order requires id, customer id and customer email")
	}
	if err := addr.validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("order requires at least one item")
	}

	total := Money{Cents: 0, Currency: items[0].UnitPrice.Currency}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %s: quantity must be positive", item.ProductID)
		}
		line, err := item.TotalPrice()
		if err != nil {
			return nil, err
		}
		total, err = total.Add(line)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		CustomerEmail:   customerEmail,
		ShippingAddress: addr,
		Status:          StatusDraft,
		Items:           items,
		Total:           total,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		loadedStatus:    StatusDraft,
	}, nil
}

// Rehydrate rebuilds a persisted order without re-running draft validation.
// The status at load time is kept so the repository can reject a save whose
// precondition another writer invalidated in the meantime.
func Rehydrate(o Order) *Order {
	o.loadedStatus = o.Status
	o.pending = nil
	return &o
}

// LoadedStatus is the status this instance was built with, before any
// in-memory transitions.
func (o *Order) LoadedStatus() OrderStatus {
	return o.loadedStatus
}

// Submit moves a freshly built order into the saga. Calling it twice, or on
// a loaded order, is illegal.
func (o *Order) Submit(correlationID string) error {
	if o.Status != StatusDraft {
		return &StateError{Op: "submit", Status: o.Status}
	}
	o.transition(StatusPending)
	o.record(Submitted{CorrelationID: correlationID})
	return nil
}

// MarkStockReserved acknowledges the catalog's reservation. Legal only from
// Pending, which also rejects a duplicate StockReserved delivery.
func (o *Order) MarkStockReserved() error {
	if o.Status != StatusPending {
		return &StateError{Op: "mark stock reserved", Status: o.Status}
	}
	o.transition(StatusStockReserved)
	return nil
}

// Confirm is legal only once stock is reserved. Confirming a Pending order
// is an ordering bug, not a recoverable condition.
func (o *Order) Confirm(correlationID string) error {
	if o.Status != StatusStockReserved {
		return &StateError{Op: "confirm", Status: o.Status}
	}
	o.transition(StatusConfirmed)
	o.record(Confirmed{CorrelationID: correlationID})
	return nil
}

// Cancel ends the order. If stock had been committed (StockReserved or
// beyond) a Cancelled event is recorded so the catalog releases it; a still
// Pending order has nothing to release and records no event.
func (o *Order) Cancel(reason, correlationID string) error {
	switch o.Status {
	case StatusPending:
		o.transition(StatusCancelled)
		return nil
	case StatusStockReserved, StatusConfirmed:
		o.transition(StatusCancelled)
		o.record(Cancelled{CorrelationID: correlationID, Reason: reason})
		return nil
	default:
		return &StateError{Op: "cancel", Status: o.Status}
	}
}

// MarkStockReservationFailed ends the saga on the failure outcome. Legal
// only while Pending; no stock was committed, so no release event.
func (o *Order) MarkStockReservationFailed(reason string) error {
	if o.Status != StatusPending {
		return &StateError{Op: "mark stock reservation failed", Status: o.Status}
	}
	if reason != "" {
		o.Notes = appendNote(o.Notes, "reservation failed: "+reason)
	}
	o.transition(StatusStockReservationFailed)
	return nil
}

// PendingEvents returns the domain events raised since the last clear. The
// application layer publishes them via the outbox and clears the buffer only
// after the commit succeeds; a failed commit publishes nothing.
func (o *Order) PendingEvents() []Event {
	return o.pending
}

func (o *Order) ClearEvents() {
	o.pending = nil
}

func (o *Order) transition(to OrderStatus) {
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
}

func (o *Order) record(e Event) {
	o.pending = append(o.pending, e)
}

func appendNote(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + "; " + extra
}
