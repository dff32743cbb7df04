package events

import (
	"sync"
	"time"

	"dispatchctl/internal/domain"
)

// DeliveryEvent is the in-process observability record emitted after every
// delivery execution and scheduler decision.
type DeliveryEvent struct {
	AttemptID   string                `json:"attempt_id"`
	EnvelopeID  string                `json:"envelope_id"`
	Destination string                `json:"destination"`
	Status      domain.DeliveryStatus `json:"status"`
	Attempt     int                   `json:"attempt"`
	Message     string                `json:"message,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
}

type Subscriber struct {
	ID         string
	EnvelopeID string // filter by envelope (empty = all)
	Events     chan DeliveryEvent
}

// Hub fans delivery events out to watch streams. Publish never blocks; a
// subscriber with a full buffer misses events rather than stalling delivery.
type Hub struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]*Subscriber)}
}

func (h *Hub) Subscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID] = sub
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.Events)
		delete(h.subscribers, id)
	}
}

func (h *Hub) Publish(event DeliveryEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.EnvelopeID != "" && sub.EnvelopeID != event.EnvelopeID {
			continue
		}
		select {
		case sub.Events <- event:
		default:
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
