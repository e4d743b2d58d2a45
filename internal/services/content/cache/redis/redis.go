// Package redis provides a Redis-backed cache.Store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillhub/quillhub.press/internal/services/content/cache"
)

// Store is a cache.Store backed by a single Redis instance.
type Store struct {
	client *redis.Client
}

// Open connects a Redis client from a redis:// URL and verifies the
// connection with a ping.
func Open(ctx context.Context, redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Get returns the payload stored under key when present and unexpired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, fmt.Errorf("cache is not configured")
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w: %v", cache.ErrUnavailable, err)
	}
	return payload, true, nil
}

// Set stores payload under key for ttl. Redis owns expiry.
func (s *Store) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache is not configured")
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Delete removes the entry stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache is not configured")
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Incr atomically increments the counter stored under key.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("cache is not configured")
	}
	value, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr: %w: %v", cache.ErrUnavailable, err)
	}
	return value, nil
}

// Counter returns the current counter value under key, zero when absent.
func (s *Store) Counter(ctx context.Context, key string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("cache is not configured")
	}
	value, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache counter: %w: %v", cache.ErrUnavailable, err)
	}
	return value, nil
}
