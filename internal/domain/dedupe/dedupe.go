// Package dedupe tracks which stations a collection run has already dispatched.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records station names to ensure at-most-once dispatch per run.
type Deduper interface {
	// SeenAndRecord atomically checks if name was seen and records it if not.
	// Returns true if name was already seen.
	SeenAndRecord(ctx context.Context, name string) bool

	// Unrecord forgets name so it can be dispatched again, e.g. after a
	// failed enqueue or an interrupted station.
	Unrecord(ctx context.Context, name string)

	// Seen reports whether name is recorded without recording it.
	Seen(ctx context.Context, name string) bool

	Size() int64
}

type inMemoryDeduper struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates a deduper, optionally pre-seeded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{seen: make(map[string]struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[name]; ok {
		return true
	}
	d.seen[name] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[name]; ok {
		delete(d.seen, name)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Seen(_ context.Context, name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[name]
	return ok
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
