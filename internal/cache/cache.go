package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a thin JSON key-value side-channel over redis. A nil *Store is
// valid and behaves as an always-miss cache, so callers can run without redis
// in tests.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	if s == nil {
		return false, nil
	}
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten
		// on the next fill.
		return false, nil
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key string, v any) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if s == nil || len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}
