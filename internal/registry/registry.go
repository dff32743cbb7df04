package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"dispatchctl/internal/domain"
	"dispatchctl/internal/security"
	"dispatchctl/internal/store"
)

var ErrSubscriberInvalid = errors.New("invalid subscriber")

// Registry resolves the set of destinations to notify for an event and
// validates subscribers at registration time, so configuration errors
// never surface during dispatch.
type Registry struct {
	subscribers store.SubscriberStore
}

func New(subscribers store.SubscriberStore) *Registry {
	return &Registry{subscribers: subscribers}
}

// Register validates and persists a new subscriber. The shared secret and
// API key are generated here when absent; the caller receives the plain
// API key once, only its hash is stored.
func (r *Registry) Register(ctx context.Context, sub *domain.Subscriber) (apiKey string, err error) {
	if err := validate(sub); err != nil {
		return "", err
	}

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.SharedSecret == "" {
		secret, err := security.GenerateSecret()
		if err != nil {
			return "", fmt.Errorf("generate secret: %w", err)
		}
		sub.SharedSecret = secret
	}

	apiKey, err = security.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	sub.APIKeyHash = security.HashKey(apiKey)
	sub.CreatedAt = time.Now().UTC()

	if err := r.subscribers.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("create subscriber: %w", err)
	}
	return apiKey, nil
}

// Resolve returns the active subscribers for an event type and scope.
// Ordering of the result is unspecified.
func (r *Registry) Resolve(ctx context.Context, eventType domain.EventType, scope string) ([]*domain.Subscriber, error) {
	subs, err := r.subscribers.FindActive(ctx, eventType, scope)
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	return subs, nil
}

// Deactivate turns a misbehaving subscriber off without deleting it.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	return r.subscribers.SetActive(ctx, id, false)
}

func (r *Registry) List(ctx context.Context) ([]*domain.Subscriber, error) {
	return r.subscribers.List(ctx)
}

func validate(sub *domain.Subscriber) error {
	if sub.Name == "" {
		return fmt.Errorf("%w: name required", ErrSubscriberInvalid)
	}
	u, err := url.Parse(sub.DestinationURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: destination url %q must be an absolute http(s) url", ErrSubscriberInvalid, sub.DestinationURL)
	}
	if len(sub.SubscribedEvents) == 0 {
		return fmt.Errorf("%w: at least one subscribed event required", ErrSubscriberInvalid)
	}
	for _, t := range sub.SubscribedEvents {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown event type %q", ErrSubscriberInvalid, t)
		}
	}
	return nil
}
