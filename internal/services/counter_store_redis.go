package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore shares rate-limit windows across processes. The window is
// the key TTL, set only when the key is created, so increments never extend it.
type RedisCounterStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCounterStore(client redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: "ratelimit:"}
}

// Hit ignores now; expiry is driven by the Redis server clock
func (s *RedisCounterStore) Hit(ctx context.Context, key string, window time.Duration, _ time.Time) (int, error) {
	k := s.prefix + key

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit hit: %w", err)
	}

	return int(incr.Val()), nil
}
