package dedup

import (
	"context"
	"time"
)

// Store claims idempotency tokens for agent result callbacks. Claim
// returns true exactly once per key within the TTL window; replays of an
// already claimed key return false.
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
