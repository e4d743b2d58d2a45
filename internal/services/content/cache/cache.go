// Package cache defines the key/value cache contract for content reads.
//
// Values are opaque byte payloads marshalled by the caller. Individual key
// operations are atomic; no guarantees hold across keys or against the
// durable store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the cache backend could not serve the operation.
var ErrUnavailable = errors.New("cache unavailable")

// Store is the minimal contract for a TTL key/value cache.
//
// Counter keys power listing-generation invalidation: Incr must be atomic
// and counters do not expire.
type Store interface {
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
	Close() error
}
