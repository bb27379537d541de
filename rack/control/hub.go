package control

import (
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-rack/rack/registry"
)

const defaultSubscriberBuffer = 16

// Hub fans registry events out to subscribers. Delivery never blocks the
// registry: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.Mutex
	next    int
	subs    map[int]chan registry.Event
	dropped atomic.Uint64
}

var _ registry.Observer = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan registry.Event)}
}

// Notify implements registry.Observer.
func (h *Hub) Notify(e registry.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan registry.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan registry.Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped returns the number of undelivered events.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
