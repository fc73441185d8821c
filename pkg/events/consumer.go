package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"orderflow/pkg/outbox"
	"orderflow/pkg/tracing"
)

const (
	maxHandleAttempts = 5
	retryBackoff      = 2 * time.Second
)

// Reader is the slice of kafka.Reader the consumer loop uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dedup tracks which messages a consumer group has fully processed.
type Dedup interface {
	MessageKey(group, topic string, partition int, offset int64) string
	Processed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}

// Consumer is the competing-consumer loop both services run: fetch, skip
// duplicates, resume the trace, dispatch through the router, commit. A
// retryable handler error is retried in place with backoff; all other
// handler errors go to the dead-letter topic. The dedup key is written only
// after the handler's side effects are committed: a crash mid-handling
// leaves the key absent, so the Kafka redelivery reprocesses the message and
// the durable guards behind the handlers absorb the duplicate.
type Consumer struct {
	log     *slog.Logger
	reader  Reader
	router  *Router
	idem    Dedup
	dlq     *DeadLetter
	group   string
	tracer  trace.Tracer
	backoff time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, router *Router, idem Dedup, dlq *DeadLetter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newConsumer(log, r, router, idem, dlq, group)
}

func newConsumer(log *slog.Logger, reader Reader, router *Router, idem Dedup, dlq *DeadLetter, group string) *Consumer {
	return &Consumer{
		log:     log,
		reader:  reader,
		router:  router,
		idem:    idem,
		dlq:     dlq,
		group:   group,
		tracer:  otel.Tracer(group),
		backoff: retryBackoff,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		key := c.idem.MessageKey(c.group, msg.Topic, msg.Partition, msg.Offset)
		done, err := c.idem.Processed(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if done {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if c.handle(ctx, msg) {
			if err := c.idem.MarkProcessed(ctx, key); err != nil {
				c.log.Warn("idempotency mark failed", "key", key, "err", err)
			}
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// handle settles one message and reports whether it may be marked processed.
// A message dead-lettered after exhausting retryable attempts stays
// unmarked, so a replay of it is handled instead of skipped as a duplicate.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	eventType := headerValue(msg.Headers, outbox.HeaderEventType)

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)
	defer span.End()

	var err error
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		err = c.router.Dispatch(msgCtx, eventType, msg.Value)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrUnknownEvent) {
			// Another consumer group on this topic owns the type.
			c.log.Debug("no handler for event type, skipping", "type", eventType)
			return true
		}
		if !IsRetryable(err) {
			break
		}
		c.log.Warn("handler retry", "type", eventType, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff):
		}
	}

	c.log.Error("handler failed, dead-lettering", "type", eventType, "err", err)
	if dlErr := c.dlq.Forward(msgCtx, msg, err); dlErr != nil {
		c.log.Error("dead-letter forward failed", "err", dlErr)
		return false
	}
	return !IsRetryable(err)
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
