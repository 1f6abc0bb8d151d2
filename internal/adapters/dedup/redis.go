package dedup

import (
	"context"
	"time"

	redisadapter "autopilot/internal/adapters/redis"
	"autopilot/pkg/errors"
)

const keyPrefix = "dedup:"

// RedisStore claims tokens through Redis SETNX so replayed callbacks are
// rejected consistently across instances.
type RedisStore struct {
	client *redisadapter.Client
}

// NewRedisStore creates a Redis-backed claim store
func NewRedisStore(client *redisadapter.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Claim atomically sets the key if absent. The first caller wins; every
// later caller within the TTL gets false.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, "1", ttl)
	if err != nil {
		return false, errors.Wrap(err, "claim dedup key")
	}
	return ok, nil
}
