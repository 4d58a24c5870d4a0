package storage

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Document is a single persisted JSON value with a default.
type Document[T any] struct {
	kv     KV
	def    func() T
	value  T
	key    string
	mu     sync.Mutex
	loaded bool
}

// NewDocument creates a document stored under key.
// def supplies the value used when nothing usable is stored.
func NewDocument[T any](kv KV, key string, def func() T) *Document[T] {
	return &Document[T]{kv: kv, key: key, def: def}
}

// Get returns the current value.
func (d *Document[T]) Get(ctx context.Context) T {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadLocked(ctx)
	return d.value
}

// Set replaces the value and writes it through.
func (d *Document[T]) Set(ctx context.Context, v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = true
	d.value = v

	raw, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", d.key).Msg("Failed to encode document")
		return
	}
	if err := d.kv.Save(ctx, d.key, raw); err != nil {
		log.Error().Err(err).Str("key", d.key).Msg("Failed to save document, keeping in-memory copy")
	}
}

// loadLocked reads the stored value once. A backend error yields the default
// without caching it, so the next call retries.
func (d *Document[T]) loadLocked(ctx context.Context) {
	if d.loaded {
		return
	}
	d.value = d.def()

	raw, ok, err := d.kv.Load(ctx, d.key)
	if err != nil {
		log.Warn().Err(err).Str("key", d.key).Msg("Failed to load document, using default")
		return
	}
	d.loaded = true
	if !ok || len(raw) == 0 {
		return
	}
	v := d.def()
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("key", d.key).Msg("Stored document is malformed, using default")
		return
	}
	d.value = v
}
