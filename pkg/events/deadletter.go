package events

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"orderflow/pkg/outbox"
)

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderFailureReason     = "x-failure-reason"
)

// DeadLetter forwards poison messages to a service's <topic>.dlt topic so
// they stay observable instead of blocking the consumer group.
type DeadLetter struct {
	log      *slog.Logger
	producer outbox.Producer
	topic    string
}

func NewDeadLetter(log *slog.Logger, producer outbox.Producer, topic string) *DeadLetter {
	return &DeadLetter{log: log, producer: producer, topic: topic}
}

func (d *DeadLetter) Forward(ctx context.Context, msg kafka.Message, cause error) error {
	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderFailureReason, Value: []byte(cause.Error())},
	)
	return d.producer.WriteMessages(ctx, kafka.Message{
		Topic:   d.topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

// LogDeadLetters drains a dead-letter topic, recording each entry. Messages
// are always committed; logging is their terminal handling.
func LogDeadLetters(ctx context.Context, log *slog.Logger, reader *kafka.Reader) error {
	defer reader.Close()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Error("dead letter received",
			"original_topic", headerValue(msg.Headers, HeaderOriginalTopic),
			"original_partition", headerValue(msg.Headers, HeaderOriginalPartition),
			"original_offset", headerValue(msg.Headers, HeaderOriginalOffset),
			"reason", headerValue(msg.Headers, HeaderFailureReason),
			"event_type", headerValue(msg.Headers, outbox.HeaderEventType),
			"key", string(msg.Key),
		)
		_ = reader.CommitMessages(ctx, msg)
	}
}
