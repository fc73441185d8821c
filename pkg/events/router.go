package events

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned when no handler is registered for an event type.
var ErrUnknownEvent = errors.New("unknown event type")

// Handler processes one inbound integration event payload.
type Handler func(ctx context.Context, payload []byte) error

// Router maps event types to handlers. The table is built once at startup;
// dispatch is a plain map lookup, never reflection.
type Router struct {
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

func (r *Router) Register(eventType string, h Handler) {
	r.handlers[eventType] = h
}

func (r *Router) Dispatch(ctx context.Context, eventType string, payload []byte) error {
	h, ok := r.handlers[eventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
	return h(ctx, payload)
}

// retryableError marks a failure the consumer should not commit past: the
// message must stay redeliverable (e.g. an outcome event raced ahead of the
// order's own commit).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the consumer redelivers instead of dead-lettering.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
