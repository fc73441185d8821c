package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is a row already persisted to the outbox table, picked up by the relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	CorrelationID string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RetryCount    int
	LastError     *string
}

// Draft is an event staged for insertion in the same transaction as the
// aggregate change it belongs to. Committing the transaction is what makes
// the publish happen (at most once per successful commit).
type Draft struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	CorrelationID string
	Traceparent   string
}
