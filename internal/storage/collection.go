package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Collection is a persisted most-recent-first list of T.
// It is loaded lazily and kept in memory; every change is written through.
// A failed write is logged and the in-memory list is kept. While the stored
// list cannot be read, reads see an empty list and incremental changes are
// dropped so they never overwrite data that is still on the backend.
type Collection[T any] struct {
	kv     KV
	id     func(T) string
	items  []T
	key    string
	mu     sync.Mutex
	loaded bool
}

// NewCollection creates a collection stored under key.
func NewCollection[T any](kv KV, key string, id func(T) string) *Collection[T] {
	return &Collection[T]{kv: kv, key: key, id: id}
}

// All returns a copy of the items, most recent first.
func (c *Collection[T]) All(ctx context.Context) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(ctx)
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *Collection[T]) Len(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(ctx)
	return len(c.items)
}

// Get returns the item with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(ctx)
	for _, it := range c.items {
		if c.id(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Prepend inserts item at the head.
func (c *Collection[T]) Prepend(ctx context.Context, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loadLocked(ctx) {
		c.dropLocked("prepend")
		return
	}
	c.items = append([]T{item}, c.items...)
	c.persistLocked(ctx)
}

// Remove deletes the item with id. It reports whether one was found.
func (c *Collection[T]) Remove(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loadLocked(ctx) {
		c.dropLocked("remove")
		return false
	}
	idx := slices.IndexFunc(c.items, func(it T) bool { return c.id(it) == id })
	if idx < 0 {
		return false
	}
	c.items = slices.Delete(c.items, idx, idx+1)
	c.persistLocked(ctx)
	return true
}

// Replace swaps the whole list.
func (c *Collection[T]) Replace(ctx context.Context, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.items = slices.Clone(items)
	c.persistLocked(ctx)
}

// Clear empties the list and removes the stored key.
func (c *Collection[T]) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.items = nil
	if err := c.kv.Remove(ctx, c.key); err != nil {
		log.Error().Err(err).Str("key", c.key).Msg("Failed to remove stored list")
	}
}

// loadLocked reads the stored list once. It reports false when the backend
// could not be read; the next call retries. Malformed data counts as empty.
func (c *Collection[T]) loadLocked(ctx context.Context) bool {
	if c.loaded {
		return true
	}
	c.items = nil

	raw, ok, err := c.kv.Load(ctx, c.key)
	if err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("Failed to load stored list, will retry")
		return false
	}
	c.loaded = true
	if !ok || len(raw) == 0 {
		return true
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("Stored list is malformed, starting empty")
		return true
	}
	c.items = items
	return true
}

func (c *Collection[T]) dropLocked(op string) {
	log.Error().Str("key", c.key).Str("op", op).Msg("Failed to save list, stored copy is unreadable")
}

func (c *Collection[T]) persistLocked(ctx context.Context) {
	items := c.items
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		log.Error().Err(err).Str("key", c.key).Msg("Failed to encode list")
		return
	}
	if err := c.kv.Save(ctx, c.key, raw); err != nil {
		log.Error().Err(err).Str("key", c.key).Msg("Failed to save list, keeping in-memory copy")
	}
}
