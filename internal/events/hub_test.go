package events

import (
	"testing"

	"dispatchctl/internal/domain"
)

func TestHubFanout(t *testing.T) {
	hub := NewHub()

	a := &Subscriber{ID: "a", Events: make(chan DeliveryEvent, 4)}
	b := &Subscriber{ID: "b", Events: make(chan DeliveryEvent, 4)}
	hub.Subscribe(a)
	hub.Subscribe(b)

	hub.Publish(DeliveryEvent{AttemptID: "at-1", EnvelopeID: "env-1", Status: domain.DeliveryStatusSuccess})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case ev := <-sub.Events:
			if ev.AttemptID != "at-1" {
				t.Errorf("subscriber %s got attempt %q", sub.ID, ev.AttemptID)
			}
		default:
			t.Errorf("subscriber %s received nothing", sub.ID)
		}
	}
}

func TestHubEnvelopeFilter(t *testing.T) {
	hub := NewHub()

	filtered := &Subscriber{ID: "f", EnvelopeID: "env-1", Events: make(chan DeliveryEvent, 4)}
	hub.Subscribe(filtered)

	hub.Publish(DeliveryEvent{AttemptID: "at-1", EnvelopeID: "env-1"})
	hub.Publish(DeliveryEvent{AttemptID: "at-2", EnvelopeID: "env-2"})

	if got := len(filtered.Events); got != 1 {
		t.Fatalf("filtered subscriber buffered %d events, want 1", got)
	}
	if ev := <-filtered.Events; ev.AttemptID != "at-1" {
		t.Errorf("got attempt %q, want at-1", ev.AttemptID)
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	hub.Subscribe(&Subscriber{ID: "full", Events: make(chan DeliveryEvent, 1)})

	// second publish overflows the buffer and must be dropped, not block
	hub.Publish(DeliveryEvent{AttemptID: "at-1"})
	hub.Publish(DeliveryEvent{AttemptID: "at-2"})
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := &Subscriber{ID: "s", Events: make(chan DeliveryEvent, 1)}
	hub.Subscribe(sub)

	if hub.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", hub.SubscriberCount())
	}
	hub.Unsubscribe("s")
	if hub.SubscriberCount() != 0 {
		t.Errorf("count = %d after unsubscribe, want 0", hub.SubscriberCount())
	}
	if _, open := <-sub.Events; open {
		t.Error("events channel should be closed")
	}

	// unsubscribing twice is harmless
	hub.Unsubscribe("s")
}
