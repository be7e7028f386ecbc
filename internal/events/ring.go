// Package events records classification events: one immutable record
// per job outcome or user feedback, kept in a bounded in-memory ring
// and appended to a durable sink for offline analysis.
package events

import (
	"sync"

	"github.com/tonelift/api/internal/model"
)

// Ring is a bounded FIFO of the most recent events. When full, the
// oldest event is evicted first.
type Ring struct {
	mu       sync.RWMutex
	events   []model.ClassificationEvent
	capacity int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{capacity: capacity}
}

// Add appends an event, evicting the oldest when at capacity.
func (r *Ring) Add(ev model.ClassificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == r.capacity {
		copy(r.events, r.events[1:])
		r.events = r.events[:r.capacity-1]
	}
	r.events = append(r.events, ev)
}

// Recent returns up to n events, newest first.
func (r *Ring) Recent(n int) []model.ClassificationEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	out := make([]model.ClassificationEvent, 0, n)
	for i := len(r.events) - 1; i >= len(r.events)-n; i-- {
		out = append(out, r.events[i])
	}
	return out
}

// Len reports the number of retained events.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
