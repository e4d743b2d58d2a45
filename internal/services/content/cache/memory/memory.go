// Package memory provides an in-process cache.Store for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Store is an in-memory TTL cache. Expired entries are dropped on read.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]entry
	counters map[string]int64
	clock    func() time.Time
}

// New creates an empty in-memory cache store.
func New() *Store {
	return &Store{
		entries:  make(map[string]entry),
		counters: make(map[string]int64),
		clock:    time.Now,
	}
}

// NewWithClock creates a store with an injectable clock for expiry tests.
func NewWithClock(clock func() time.Time) *Store {
	store := New()
	if clock != nil {
		store.clock = clock
	}
	return store
}

// Get returns the payload stored under key when present and unexpired.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	key = strings.TrimSpace(key)

	s.mu.RLock()
	item, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && s.clock().After(item.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return item.payload, true, nil
}

// Set stores payload under key for ttl. A non-positive ttl stores forever.
func (s *Store) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if s == nil {
		return nil
	}
	key = strings.TrimSpace(key)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry{payload: payload, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Delete removes the entry stored under key.
func (s *Store) Delete(_ context.Context, key string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(key))
	s.mu.Unlock()
	return nil
}

// Incr atomically increments the counter stored under key.
func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	if s == nil {
		return 0, nil
	}
	key = strings.TrimSpace(key)
	s.mu.Lock()
	s.counters[key]++
	value := s.counters[key]
	s.mu.Unlock()
	return value, nil
}

// Counter returns the current counter value under key, zero when absent.
func (s *Store) Counter(_ context.Context, key string) (int64, error) {
	if s == nil {
		return 0, nil
	}
	s.mu.RLock()
	value := s.counters[strings.TrimSpace(key)]
	s.mu.RUnlock()
	return value, nil
}

// Close releases nothing; it exists to satisfy the cache contract.
func (s *Store) Close() error {
	return nil
}
