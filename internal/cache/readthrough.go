package cache

import (
	"context"
	"sync"
	"time"
)

type LoadFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// ReadThrough is a small in-process cache that loads on miss and expires
// entries after ttl as measured by its Clock. Load errors are not cached.
type ReadThrough[K comparable, V any] struct {
	ttl   time.Duration
	clock Clock
	load  LoadFunc[K, V]

	mu      sync.Mutex
	entries map[K]entry[V]
}

func NewReadThrough[K comparable, V any](ttl time.Duration, clock Clock, load LoadFunc[K, V]) *ReadThrough[K, V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReadThrough[K, V]{
		ttl:     ttl,
		clock:   clock,
		load:    load,
		entries: make(map[K]entry[V]),
	}
}

func (c *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, error) {
	now := c.clock.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && now.Before(e.expiresAt) {
		return e.value, nil
	}

	// Загрузка вне мьютекса: параллельные промахи по одному ключу допустимы.
	v, err := c.load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[key] = entry[V]{value: v, expiresAt: now.Add(c.ttl)}
		c.mu.Unlock()
	}
	return v, nil
}

func (c *ReadThrough[K, V]) Forget(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *ReadThrough[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
