package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"dispatchctl/internal/domain"
	"dispatchctl/internal/store"
)

// Sink delivers one rendered message over one channel. Send returns
// (false, nil) when the channel has nothing configured for the recipient,
// which is a normal no-op rather than an error.
type Sink interface {
	Channel() domain.Channel
	Send(ctx context.Context, env *domain.Envelope, msg Message) (delivered bool, err error)
}

// InAppSink writes a notification row; "delivery" is the durable insert.
type InAppSink struct {
	notifications store.NotificationStore
}

func NewInAppSink(notifications store.NotificationStore) *InAppSink {
	return &InAppSink{notifications: notifications}
}

func (s *InAppSink) Channel() domain.Channel { return domain.ChannelInApp }

func (s *InAppSink) Send(ctx context.Context, env *domain.Envelope, msg Message) (bool, error) {
	userID := userFrom(env)
	if userID == "" {
		return false, nil
	}

	now := time.Now().UTC()
	n := &domain.Notification{
		ID:             uuid.New().String(),
		UserID:         userID,
		OrganizationID: env.Scope,
		EnvelopeID:     env.ID,
		Channel:        domain.ChannelInApp,
		Title:          msg.Title,
		Body:           msg.Body,
		TemplateData:   env.Data,
		DeliveredAt:    &now,
		CreatedAt:      now,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}

// PushSink posts to the user's stored push endpoint. No stored
// subscription means no-op.
type PushSink struct {
	channels store.ChannelConfigStore
	client   *http.Client
}

func NewPushSink(channels store.ChannelConfigStore, timeout time.Duration) *PushSink {
	return &PushSink{
		channels: channels,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *PushSink) Channel() domain.Channel { return domain.ChannelPush }

func (s *PushSink) Send(ctx context.Context, env *domain.Envelope, msg Message) (bool, error) {
	userID := userFrom(env)
	if userID == "" {
		return false, nil
	}

	sub, ok, err := s.channels.PushSubscription(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("lookup push subscription: %w", err)
	}
	if !ok {
		return false, nil
	}

	payload, err := json.Marshal(map[string]string{
		"title": msg.Title,
		"body":  msg.Body,
	})
	if err != nil {
		return false, fmt.Errorf("marshal push payload: %w", err)
	}

	if err := s.post(ctx, sub.Endpoint, payload); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PushSink) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push delivery: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push delivery: HTTP %d", resp.StatusCode)
	}
	return nil
}

// SlackSink posts a formatted message to the tenant's stored incoming
// webhook. No stored webhook for the scope means no-op.
type SlackSink struct {
	channels store.ChannelConfigStore
	client   *http.Client
}

func NewSlackSink(channels store.ChannelConfigStore, timeout time.Duration) *SlackSink {
	return &SlackSink{
		channels: channels,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *SlackSink) Channel() domain.Channel { return domain.ChannelSlack }

func (s *SlackSink) Send(ctx context.Context, env *domain.Envelope, msg Message) (bool, error) {
	if env.Scope == "" {
		return false, nil
	}

	url, ok, err := s.channels.SlackWebhookURL(ctx, env.Scope)
	if err != nil {
		return false, fmt.Errorf("lookup slack webhook: %w", err)
	}
	if !ok {
		return false, nil
	}

	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body),
	})
	if err != nil {
		return false, fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("slack delivery: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("slack delivery: HTTP %d", resp.StatusCode)
	}
	return true, nil
}

func userFrom(env *domain.Envelope) string {
	if env.Data == nil {
		return ""
	}
	if v, ok := env.Data["user_id"].(string); ok {
		return v
	}
	return ""
}
