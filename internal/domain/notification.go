package domain

import "time"

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelSlack Channel = "slack"
)

// Notification is one channel delivery produced from an envelope. One
// envelope may produce zero or more notifications across channels,
// independent of the webhook delivery attempts for the same envelope.
type Notification struct {
	ID             string
	UserID         string
	OrganizationID string
	EnvelopeID     string
	Channel        Channel
	Title          string
	Body           string
	TemplateData   map[string]any
	DeliveredAt    *time.Time
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// PushSubscription is a stored per-user push endpoint. Absence of a
// subscription is a normal no-op for the push channel, not an error.
type PushSubscription struct {
	UserID    string
	Endpoint  string
	Keys      map[string]string
	CreatedAt time.Time
}
