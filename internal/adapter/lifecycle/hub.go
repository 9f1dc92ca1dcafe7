// Package lifecycle carries host lifecycle signals to the pipeline. The host
// emits events; pipelines subscribe. Nothing is patched or intercepted.
package lifecycle

import (
	"log/slog"
	"sync"
)

// EventType names a host lifecycle signal.
type EventType string

const (
	// Hidden: the host went to the background and may be killed without
	// further notice.
	Hidden EventType = "hidden"
	// Visible: the host returned to the foreground.
	Visible EventType = "visible"
	// Focus: the user interacted with the host.
	Focus EventType = "focus"
	// Teardown: the host is about to exit. Pipelines start sending their
	// queue but do not wait; the host must follow with Client.Shutdown to
	// wait for the sends.
	Teardown EventType = "teardown"
	// Navigation: the current location changed; URL carries the new one.
	Navigation EventType = "navigation"
)

// Event is one lifecycle signal.
type Event struct {
	Type EventType
	URL  string
}

// Listener handles an event. Listeners run synchronously on the emitting
// goroutine and must not block.
type Listener func(Event)

// Hub fans events out to subscribers in subscription order.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
	logger    *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		listeners: make(map[uint64]Listener),
		logger:    logger.With("component", "lifecycle"),
	}
}

// Subscribe registers l and returns a function removing it.
func (h *Hub) Subscribe(l Listener) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.listeners, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit delivers e to every listener. A panicking listener is logged and
// does not stop the others.
func (h *Hub) Emit(e Event) {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.order))
	for _, id := range h.order {
		listeners = append(listeners, h.listeners[id])
	}
	h.mu.RUnlock()

	h.logger.Debug("lifecycle event", "type", e.Type, "url", e.URL)
	for _, l := range listeners {
		h.call(l, e)
	}
}

func (h *Hub) call(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Debug("lifecycle listener panicked", "type", e.Type, "panic", r)
		}
	}()
	l(e)
}
