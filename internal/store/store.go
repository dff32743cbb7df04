package store

import (
	"context"
	"time"

	"dispatchctl/internal/domain"
)

// SubscriberStore persists webhook subscribers. FindActive applies the
// registry filtering rules (active, subscribed to the event type, scope
// match); result ordering is unspecified and callers treat it as a set.
type SubscriberStore interface {
	Create(ctx context.Context, sub *domain.Subscriber) error
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
	List(ctx context.Context) ([]*domain.Subscriber, error)
	FindActive(ctx context.Context, eventType domain.EventType, scope string) ([]*domain.Subscriber, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type DeliveryAttemptStore interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	Update(ctx context.Context, attempt *domain.DeliveryAttempt) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
	List(ctx context.Context, limit int) ([]*domain.DeliveryAttempt, error)
	// GetDueRetries returns attempts with status RETRYING whose NextRetryAt
	// is at or before now. Each returned attempt is independently retryable.
	GetDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.DeliveryAttempt, error)
	// HoldRetry pushes NextRetryAt forward for an attempt that is still
	// RETRYING, as a single conditional write. Returns false when the
	// attempt has since moved to another status, so a concurrent worker's
	// terminal write is never clobbered.
	HoldRetry(ctx context.Context, id string, until time.Time) (bool, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
}

// ChannelConfigStore resolves per-tenant notification channel settings.
// A missing Slack webhook or push subscription is a normal no-op signal.
type ChannelConfigStore interface {
	SlackWebhookURL(ctx context.Context, scope string) (string, bool, error)
	PushSubscription(ctx context.Context, userID string) (*domain.PushSubscription, bool, error)
}
