// Package feed fans persisted chat messages out to live admin viewers.
package feed

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one persisted message as seen by the admin console.
type Event struct {
	Type           string    `json:"type"` // always "message"
	ConversationID uint      `json:"conversation_id"`
	MessageID      uint      `json:"message_id"`
	LineUserID     string    `json:"line_user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Hub broadcasts events to subscribers. Slow subscribers miss events instead
// of blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

type Subscription struct {
	C    <-chan Event
	ch   chan Event
	hub  *Hub
	once sync.Once
}

// Subscribe registers a new subscriber. Close must be called when done.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Publish delivers e to every subscriber with room in its buffer. A nil Hub
// is a no-op.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	if e.Type == "" {
		e.Type = "message"
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for full buffers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
