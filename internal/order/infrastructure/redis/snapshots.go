package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"orderflow/internal/order/application"
)

const keyPrefix = "product:"

// SnapshotStore keeps the product read model in Redis, one JSON value per
// product. Eventually consistent by construction: it is written only from
// catalog events.
type SnapshotStore struct {
	rdb *redis.Client
}

func NewSnapshotStore(rdb *redis.Client) *SnapshotStore {
	return &SnapshotStore{rdb: rdb}
}

func (s *SnapshotStore) Put(ctx context.Context, snap application.ProductSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyPrefix+snap.ProductID, raw, 0).Err()
}

func (s *SnapshotStore) Get(ctx context.Context, productID string) (application.ProductSnapshot, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+productID).Bytes()
	if errors.Is(err, redis.Nil) {
		return application.ProductSnapshot{}, application.ErrSnapshotNotFound
	}
	if err != nil {
		return application.ProductSnapshot{}, err
	}
	var snap application.ProductSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return application.ProductSnapshot{}, err
	}
	return snap, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, productID string) error {
	return s.rdb.Del(ctx, keyPrefix+productID).Err()
}
