package domain

import "testing"

func TestSubscriberMatches(t *testing.T) {
	tests := []struct {
		name   string
		sub    Subscriber
		event  EventType
		scope  string
		expect bool
	}{
		{
			name:   "global subscriber matches scoped event",
			sub:    Subscriber{Active: true, SubscribedEvents: []EventType{EventSummaryCompleted}},
			event:  EventSummaryCompleted,
			scope:  "org-42",
			expect: true,
		},
		{
			name:   "global subscriber matches unscoped event",
			sub:    Subscriber{Active: true, SubscribedEvents: []EventType{EventSummaryCompleted}},
			event:  EventSummaryCompleted,
			expect: true,
		},
		{
			name:   "scoped subscriber matches same scope",
			sub:    Subscriber{Active: true, ScopeID: "org-42", SubscribedEvents: []EventType{EventSummaryCompleted}},
			event:  EventSummaryCompleted,
			scope:  "org-42",
			expect: true,
		},
		{
			name:   "scoped subscriber excluded from other scope",
			sub:    Subscriber{Active: true, ScopeID: "org-99", SubscribedEvents: []EventType{EventSummaryCompleted}},
			event:  EventSummaryCompleted,
			scope:  "org-42",
			expect: false,
		},
		{
			name:   "scoped subscriber excluded from unscoped event",
			sub:    Subscriber{Active: true, ScopeID: "org-42", SubscribedEvents: []EventType{EventSummaryCompleted}},
			event:  EventSummaryCompleted,
			expect: false,
		},
		{
			name:   "inactive subscriber never matches",
			sub:    Subscriber{Active: false, SubscribedEvents: []EventType{EventSummaryCompleted}},
			event:  EventSummaryCompleted,
			scope:  "org-42",
			expect: false,
		},
		{
			name:   "unsubscribed event type excluded",
			sub:    Subscriber{Active: true, SubscribedEvents: []EventType{EventUserCreated, EventUserDeleted}},
			event:  EventSummaryCompleted,
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Matches(tt.event, tt.scope); got != tt.expect {
				t.Errorf("Matches(%s, %q) = %v, want %v", tt.event, tt.scope, got, tt.expect)
			}
		})
	}
}
