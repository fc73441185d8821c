package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"orderflow/pkg/outbox"
)

type fakeReader struct {
	mu       sync.Mutex
	queue    []kafka.Message
	commits  []int64
	sequence *[]string
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	*r.sequence = append(*r.sequence, "commit")
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeDedup struct {
	mu       sync.Mutex
	keys     map[string]bool
	sequence *[]string
}

func (d *fakeDedup) MessageKey(group, topic string, partition int, offset int64) string {
	return group + ":" + topic
}

func (d *fakeDedup) Processed(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys[key], nil
}

func (d *fakeDedup) MarkProcessed(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = true
	*d.sequence = append(*d.sequence, "mark")
	return nil
}

type captureProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (p *captureProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func message(eventType string, offset int64) kafka.Message {
	return kafka.Message{
		Topic:     "catalog.events",
		Offset:    offset,
		Value:     []byte(`{"orderId":"o1"}`),
		Headers:   []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(eventType)}},
		Partition: 0,
	}
}

func testConsumer(t *testing.T, router *Router, msgs ...kafka.Message) (*Consumer, *fakeReader, *fakeDedup, *captureProducer, *[]string) {
	t.Helper()
	sequence := &[]string{}
	reader := &fakeReader{queue: msgs, sequence: sequence}
	dedup := &fakeDedup{keys: make(map[string]bool), sequence: sequence}
	producer := &captureProducer{}
	dlq := NewDeadLetter(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "test.dlt")
	c := newConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), reader, router, dedup, dlq, "group-a")
	c.backoff = time.Millisecond
	return c, reader, dedup, producer, sequence
}

func TestConsumerMarksOnlyAfterHandlerCommits(t *testing.T) {
	c, reader, dedup, _, sequence := testConsumer(t, NewRouter(), message(TypeStockReserved, 1))
	c.router.Register(TypeStockReserved, func(ctx context.Context, payload []byte) error {
		*sequence = append(*sequence, "handle")
		return nil
	})

	if err := c.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"handle", "mark", "commit"}
	if len(*sequence) != len(want) {
		t.Fatalf("expected %v, got %v", want, *sequence)
	}
	for i, step := range want {
		if (*sequence)[i] != step {
			t.Fatalf("expected %v, got %v", want, *sequence)
		}
	}
	if !dedup.keys["group-a:catalog.events"] {
		t.Error("key must be marked after success")
	}
	if len(reader.commits) != 1 {
		t.Errorf("expected 1 commit, got %v", reader.commits)
	}
}

func TestConsumerSkipsProcessedMessage(t *testing.T) {
	handled := false
	router := NewRouter()
	router.Register(TypeStockReserved, func(ctx context.Context, payload []byte) error {
		handled = true
		return nil
	})

	c, reader, dedup, _, _ := testConsumer(t, router, message(TypeStockReserved, 1))
	dedup.keys["group-a:catalog.events"] = true

	if err := c.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run: %v", err)
	}
	if handled {
		t.Error("processed message must not reach the handler")
	}
	if len(reader.commits) != 1 {
		t.Errorf("duplicate must still be committed, got %v", reader.commits)
	}
}

func TestConsumerPermanentErrorDeadLettersAndMarks(t *testing.T) {
	router := NewRouter()
	router.Register(TypeStockReserved, func(ctx context.Context, payload []byte) error {
		return errors.New("cannot confirm order in status \"cancelled\"")
	})

	c, _, dedup, producer, _ := testConsumer(t, router, message(TypeStockReserved, 1))

	if err := c.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run: %v", err)
	}
	if len(producer.msgs) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(producer.msgs))
	}
	if !dedup.keys["group-a:catalog.events"] {
		t.Error("a permanently failed, dead-lettered message is settled and marked")
	}
}

func TestConsumerRetryableExhaustionStaysUnmarked(t *testing.T) {
	attempts := 0
	router := NewRouter()
	router.Register(TypeStockReserved, func(ctx context.Context, payload []byte) error {
		attempts++
		return Retryable(errors.New("order not visible yet"))
	})

	c, _, dedup, producer, _ := testConsumer(t, router, message(TypeStockReserved, 1))

	if err := c.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run: %v", err)
	}
	if attempts != maxHandleAttempts {
		t.Errorf("expected %d attempts, got %d", maxHandleAttempts, attempts)
	}
	if len(producer.msgs) != 1 {
		t.Fatalf("expected exhausted message dead-lettered, got %d", len(producer.msgs))
	}
	if dedup.keys["group-a:catalog.events"] {
		t.Error("exhausted retryable message must stay unmarked so a replay reprocesses it")
	}
}

func TestConsumerSkipsUnknownEventType(t *testing.T) {
	c, reader, _, producer, _ := testConsumer(t, NewRouter(), message("ProductCreated", 1))

	if err := c.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run: %v", err)
	}
	if len(producer.msgs) != 0 {
		t.Error("unknown type on a shared topic must not be dead-lettered")
	}
	if len(reader.commits) != 1 {
		t.Errorf("unknown type must be committed, got %v", reader.commits)
	}
}
