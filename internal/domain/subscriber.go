package domain

import "time"

// Subscriber is a registered webhook destination. A subscriber only ever
// receives events it is active for, has subscribed to, and whose scope
// matches (an empty ScopeID is global and matches any scope).
type Subscriber struct {
	ID               string
	Name             string
	DestinationURL   string
	SharedSecret     string
	APIKeyHash       string
	SubscribedEvents []EventType
	Active           bool
	ScopeID          string
	CreatedAt        time.Time
}

func (s *Subscriber) SubscribedTo(t EventType) bool {
	for _, e := range s.SubscribedEvents {
		if e == t {
			return true
		}
	}
	return false
}

// Matches reports whether this subscriber should receive an event of the
// given type dispatched under the given scope.
func (s *Subscriber) Matches(t EventType, scope string) bool {
	if !s.Active {
		return false
	}
	if !s.SubscribedTo(t) {
		return false
	}
	if s.ScopeID != "" && scope != "" && s.ScopeID != scope {
		return false
	}
	if s.ScopeID != "" && scope == "" {
		return false
	}
	return true
}
