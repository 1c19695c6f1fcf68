// Package history provides the bounded, newest-first in-memory store of
// received webhook entries.
package history

import (
	"sync"

	"github.com/mattjoyce/hookecho/internal/entry"
)

// DefaultCapacity bounds the store when no capacity is configured.
const DefaultCapacity = 1000

// History is a fixed-capacity ring of entries ordered newest first. Inserting
// past capacity silently evicts the oldest entry. A single mutex serializes
// all operations; at most DefaultCapacity-sized scans, full serialization is
// the correctness guarantee, not a bottleneck.
type History struct {
	mu    sync.Mutex
	buf   []entry.Entry
	head  int // slot of the newest entry
	count int
}

// New creates an empty history. Non-positive capacities fall back to
// DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		buf: make([]entry.Entry, capacity),
	}
}

// Insert adds e at the front. When the store is full the oldest entry is
// dropped. Atomic with respect to concurrent Insert/List/Get/Size.
func (h *History) Insert(e entry.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.head = (h.head - 1 + len(h.buf)) % len(h.buf)
	h.buf[h.head] = e
	if h.count < len(h.buf) {
		h.count++
	}
}

// List returns a snapshot of up to limit entries starting at offset in
// newest-first order. The snapshot does not reflect later inserts.
func (h *History) List(offset, limit int) []entry.Entry {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if offset >= h.count {
		return nil
	}
	if offset+limit > h.count {
		limit = h.count - offset
	}

	out := make([]entry.Entry, limit)
	for i := 0; i < limit; i++ {
		out[i] = h.buf[(h.head+offset+i)%len(h.buf)]
	}
	return out
}

// Get returns the entry with the given id, scanning newest first. The second
// return is false when no entry matches (including after eviction).
func (h *History) Get(id string) (entry.Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := 0; i < h.count; i++ {
		e := h.buf[(h.head+i)%len(h.buf)]
		if e.ID == id {
			return e, true
		}
	}
	return entry.Entry{}, false
}

// Size returns the current number of stored entries.
func (h *History) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Capacity returns the fixed capacity the store was created with.
func (h *History) Capacity() int {
	return len(h.buf)
}
