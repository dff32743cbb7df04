package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dispatchctl/internal/domain"
	"dispatchctl/internal/store/memory"
)

func validSubscriber() *domain.Subscriber {
	return &domain.Subscriber{
		Name:             "billing-hooks",
		DestinationURL:   "https://hooks.example.com/billing",
		SubscribedEvents: []domain.EventType{domain.EventPaymentSuccess, domain.EventPaymentFailed},
		Active:           true,
	}
}

func TestRegisterGeneratesCredentials(t *testing.T) {
	reg := New(memory.NewSubscriberStore())
	sub := validSubscriber()

	apiKey, err := reg.Register(context.Background(), sub)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !strings.HasPrefix(apiKey, "dc_") {
		t.Errorf("api key %q missing dc_ prefix", apiKey)
	}
	if !strings.HasPrefix(sub.SharedSecret, "whsec_") {
		t.Errorf("shared secret %q missing whsec_ prefix", sub.SharedSecret)
	}
	if sub.APIKeyHash == "" || sub.APIKeyHash == apiKey {
		t.Error("stored hash must be set and must not be the plain key")
	}
	if sub.ID == "" {
		t.Error("subscriber ID should be assigned")
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	reg := New(memory.NewSubscriberStore())

	tests := []struct {
		name   string
		mutate func(*domain.Subscriber)
	}{
		{"missing name", func(s *domain.Subscriber) { s.Name = "" }},
		{"relative url", func(s *domain.Subscriber) { s.DestinationURL = "/hooks" }},
		{"bad scheme", func(s *domain.Subscriber) { s.DestinationURL = "ftp://example.com/x" }},
		{"no events", func(s *domain.Subscriber) { s.SubscribedEvents = nil }},
		{"unknown event", func(s *domain.Subscriber) {
			s.SubscribedEvents = []domain.EventType{"invoice.shredded"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubscriber()
			tt.mutate(sub)
			if _, err := reg.Register(context.Background(), sub); !errors.Is(err, ErrSubscriberInvalid) {
				t.Errorf("Register error = %v, want ErrSubscriberInvalid", err)
			}
		})
	}

	// nothing invalid is ever persisted
	subs, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("store holds %d subscribers after rejected registrations, want 0", len(subs))
	}
}

func TestResolveFilters(t *testing.T) {
	ctx := context.Background()
	reg := New(memory.NewSubscriberStore())

	global := validSubscriber()
	global.Name = "global"
	global.SubscribedEvents = []domain.EventType{domain.EventSummaryCompleted}

	scoped := validSubscriber()
	scoped.Name = "org-42-only"
	scoped.ScopeID = "org-42"
	scoped.SubscribedEvents = []domain.EventType{domain.EventSummaryCompleted}

	other := validSubscriber()
	other.Name = "org-99-only"
	other.ScopeID = "org-99"
	other.SubscribedEvents = []domain.EventType{domain.EventSummaryCompleted}

	inactive := validSubscriber()
	inactive.Name = "retired"
	inactive.Active = false
	inactive.SubscribedEvents = []domain.EventType{domain.EventSummaryCompleted}

	for _, s := range []*domain.Subscriber{global, scoped, other, inactive} {
		if _, err := reg.Register(ctx, s); err != nil {
			t.Fatalf("Register %s: %v", s.Name, err)
		}
	}

	got, err := reg.Resolve(ctx, domain.EventSummaryCompleted, "org-42")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	names := map[string]bool{}
	for _, s := range got {
		names[s.Name] = true
	}
	if len(got) != 2 || !names["global"] || !names["org-42-only"] {
		t.Errorf("Resolve(org-42) = %v, want global + org-42-only", names)
	}

	got, err = reg.Resolve(ctx, domain.EventSummaryCompleted, "")
	if err != nil {
		t.Fatalf("Resolve unscoped: %v", err)
	}
	if len(got) != 1 || got[0].Name != "global" {
		t.Errorf("unscoped Resolve returned %d subscribers, want only global", len(got))
	}

	got, err = reg.Resolve(ctx, domain.EventUserDeleted, "org-42")
	if err != nil {
		t.Fatalf("Resolve other type: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Resolve for unsubscribed type returned %d, want 0", len(got))
	}
}

func TestDeactivateRemovesFromResolve(t *testing.T) {
	ctx := context.Background()
	reg := New(memory.NewSubscriberStore())

	sub := validSubscriber()
	if _, err := reg.Register(ctx, sub); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Deactivate(ctx, sub.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	got, err := reg.Resolve(ctx, domain.EventPaymentSuccess, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("deactivated subscriber still resolved: %d results", len(got))
	}
}
