package domain

// Event is a domain event buffered on the aggregate until the surrounding
// transaction commits.
type Event interface {
	EventType() string
}

// Submitted starts the reservation saga.
type Submitted struct {
	CorrelationID string
}

func (Submitted) EventType() string { return "OrderSubmitted" }

// Confirmed means stock was reserved and the order is going through.
type Confirmed struct {
	CorrelationID string
}

func (Confirmed) EventType() string { return "OrderConfirmed" }

// Cancelled is raised only when committed stock must be released.
type Cancelled struct {
	CorrelationID string
	Reason        string
}

func (Cancelled) EventType() string { return "OrderCancelled" }
