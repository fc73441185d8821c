package domain

// ReservationRequest is the transient input to one saga step. It lives only
// for the duration of the attempt; the durable record is the outcome event.
type ReservationRequest struct {
	OrderID       string
	CorrelationID string
	Items         []RequestedItem
}

type RequestedItem struct {
	ProductID string
	Quantity  int
}

type ReservedItem struct {
	ProductID string
	Quantity  int
}

// Outcome is the single terminal result of a reservation attempt: either
// every item was reserved, or the first failing item's reason.
type Outcome struct {
	Reserved []ReservedItem
	Reason   string
}

func (o Outcome) Failed() bool { return o.Reason != "" }
