package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dispatchctl/internal/domain"
)

// Stores are in-memory implementations of the store interfaces, used for
// single-node development and as test substitutes for the postgres stores.

type SubscriberStore struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscriber
}

func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{subs: make(map[string]*domain.Subscriber)}
}

func (s *SubscriberStore) Create(ctx context.Context, sub *domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; ok {
		return fmt.Errorf("subscriber %s already exists", sub.ID)
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *SubscriberStore) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %s not found", id)
	}
	cp := *sub
	return &cp, nil
}

func (s *SubscriberStore) List(ctx context.Context) ([]*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		cp := *sub
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *SubscriberStore) FindActive(ctx context.Context, eventType domain.EventType, scope string) ([]*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Subscriber
	for _, sub := range s.subs {
		if sub.Matches(eventType, scope) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *SubscriberStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return fmt.Errorf("subscriber %s not found", id)
	}
	sub.Active = active
	return nil
}

type DeliveryAttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*domain.DeliveryAttempt
	order    []string
}

func NewDeliveryAttemptStore() *DeliveryAttemptStore {
	return &DeliveryAttemptStore{attempts: make(map[string]*domain.DeliveryAttempt)}
}

func (s *DeliveryAttemptStore) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; ok {
		return fmt.Errorf("attempt %s already exists", attempt.ID)
	}
	cp := *attempt
	s.attempts[attempt.ID] = &cp
	s.order = append(s.order, attempt.ID)
	return nil
}

func (s *DeliveryAttemptStore) Update(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; !ok {
		return fmt.Errorf("attempt %s not found", attempt.ID)
	}
	cp := *attempt
	s.attempts[attempt.ID] = &cp
	return nil
}

func (s *DeliveryAttemptStore) GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt %s not found", id)
	}
	cp := *attempt
	return &cp, nil
}

func (s *DeliveryAttemptStore) List(ctx context.Context, limit int) ([]*domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.DeliveryAttempt
	for i := len(s.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *s.attempts[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *DeliveryAttemptStore) GetDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.DeliveryAttempt
	for _, id := range s.order {
		attempt := s.attempts[id]
		if attempt.Status != domain.DeliveryStatusRetrying {
			continue
		}
		if attempt.NextRetryAt == nil || attempt.NextRetryAt.After(now) {
			continue
		}
		cp := *attempt
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *DeliveryAttemptStore) HoldRetry(ctx context.Context, id string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return false, fmt.Errorf("attempt %s not found", id)
	}
	if attempt.Status != domain.DeliveryStatusRetrying {
		return false, nil
	}
	attempt.NextRetryAt = &until
	attempt.UpdatedAt = time.Now().UTC()
	return true, nil
}

type NotificationStore struct {
	mu    sync.RWMutex
	rows  map[string]*domain.Notification
	order []string
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{rows: make(map[string]*domain.Notification)}
}

func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.rows[n.ID] = &cp
	s.order = append(s.order, n.ID)
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Notification
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.rows[s.order[i]]
		if n.UserID != userID {
			continue
		}
		cp := *n
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("notification %s not found", id)
	}
	n.ReadAt = &at
	return nil
}

type ChannelConfigStore struct {
	mu            sync.RWMutex
	slackWebhooks map[string]string
	pushSubs      map[string]*domain.PushSubscription
}

func NewChannelConfigStore() *ChannelConfigStore {
	return &ChannelConfigStore{
		slackWebhooks: make(map[string]string),
		pushSubs:      make(map[string]*domain.PushSubscription),
	}
}

func (s *ChannelConfigStore) SetSlackWebhook(scope, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slackWebhooks[scope] = url
}

func (s *ChannelConfigStore) SetPushSubscription(sub *domain.PushSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushSubs[sub.UserID] = sub
}

func (s *ChannelConfigStore) SlackWebhookURL(ctx context.Context, scope string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.slackWebhooks[scope]
	return url, ok, nil
}

func (s *ChannelConfigStore) PushSubscription(ctx context.Context, userID string) (*domain.PushSubscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.pushSubs[userID]
	if !ok {
		return nil, false, nil
	}
	cp := *sub
	return &cp, true, nil
}
