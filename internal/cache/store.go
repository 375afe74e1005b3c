package cache

import (
	"context"
	"time"
)

// Store is the shared key-value surface used for ephemeral state that must be
// visible to every running instance: rate-limit counters and one-time
// magic-link tokens. Implementations must make IncrementWithTTL a single
// atomic storage operation, not a read-then-write pair.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
