package domain

import (
	"errors"
	"fmt"
)

var ErrOrderNotFound = errors.New("order not found")

// StateError reports an illegal order state transition. It is never retried:
// a transition attempted from the wrong status means a saga ordering bug or a
// duplicate delivery, and the caller must surface it (HTTP 409 or
// dead-letter), not mask it.
type StateError struct {
	Op     string
	Status OrderStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %q", e.Op, e.Status)
}

func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
