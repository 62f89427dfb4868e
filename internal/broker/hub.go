package broker

import (
	"sync"

	"go.uber.org/zap"
)

// Hub fans the gateway event stream out to predicate-scoped subscriptions.
// A Subscription receives only the events its filter accepts, and detaches
// itself once Cancel is called, so a waiter cannot leak listeners across
// repeated operations.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu     sync.Mutex
	nextID int64
	subs   map[int64]*subscriber
}

type subscriber struct {
	filter func(Event) bool
	ch     chan Event
}

// Subscription is a live, cancellable attachment to the Hub.
type Subscription struct {
	// C delivers matching events. It is closed on Cancel.
	C <-chan Event

	hub  *Hub
	id   int64
	once sync.Once
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		sub, ok := s.hub.subs[s.id]
		if ok {
			delete(s.hub.subs, s.id)
			close(sub.ch)
		}
	})
}

// NewHub creates an event hub. buffer is the per-subscription channel depth.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}

	return &Hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[int64]*subscriber),
	}
}

// Subscribe attaches a filtered subscription. A nil filter matches every
// event.
func (h *Hub) Subscribe(filter func(Event) bool) *Subscription {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	ch := make(chan Event, h.buffer)
	h.subs[id] = &subscriber{filter: filter, ch: ch}
	h.mu.Unlock()

	return &Subscription{C: ch, hub: h, id: id}
}

// Publish delivers an event to every matching subscription. Delivery is
// non-blocking: a subscriber that stopped draining its channel loses the
// event rather than stalling the gateway read loop. The lock is held across
// the fan-out so Cancel cannot close a channel mid-send.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}

		select {
		case sub.ch <- ev:
		default:
			EventsDroppedTotal.Inc()
			if h.logger != nil {
				h.logger.Warn("subscriber-channel-full")
			}
		}
	}
}
