// Package dedupe defines the interface for idempotency tracking.
//
// The deduper guards resolution requests: while a goal's completion or
// missed job is in flight, a second request for the same goal is reported
// as already seen instead of being enqueued again.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen resolution keys to ensure at-most-once enqueueing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing it to be retried.
	// Used when a recorded request failed to enqueue, and by workers once
	// a job has been processed.
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of recorded IDs.
	Size() int64
}

// inMemoryDeduper implements Deduper with a bounded map and FIFO eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order; may contain unrecorded ghosts
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize && len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.seen, oldest)
		}
	}

	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	return false
}

// Unrecord removes an ID from the seen list.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// The order slice keeps a ghost entry; eviction skips it naturally
	// since only map membership counts.
	delete(d.seen, id)
}

// Size returns the current number of recorded IDs.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
