package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates redelivered messages with a key-per-message scheme.
// Checking and marking are separate operations: a message is marked only
// after its side effects are durably committed, so a crash mid-handling
// leaves the key absent and the redelivery reprocesses.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// MessageKey identifies one delivered Kafka message within a consumer
// group. Groups sharing a topic must not shadow each other's deliveries.
func (s *Store) MessageKey(group, topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%s:%d:%d", group, topic, partition, offset)
}

// Processed reports whether the key was already marked.
func (s *Store) Processed(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed records the key once the message's effects are committed.
func (s *Store) MarkProcessed(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
