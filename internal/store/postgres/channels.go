package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dispatchctl/internal/domain"
)

type ChannelConfigStore struct {
	db *DB
}

func NewChannelConfigStore(db *DB) *ChannelConfigStore {
	return &ChannelConfigStore{db: db}
}

func (s *ChannelConfigStore) SlackWebhookURL(ctx context.Context, scope string) (string, bool, error) {
	var url string
	err := s.db.Pool.QueryRow(ctx, `SELECT url FROM slack_webhooks WHERE scope_id = $1`, scope).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query slack webhook: %w", err)
	}
	return url, true, nil
}

func (s *ChannelConfigStore) PushSubscription(ctx context.Context, userID string) (*domain.PushSubscription, bool, error) {
	var sub domain.PushSubscription
	var keys []byte

	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id, endpoint, keys, created_at FROM push_subscriptions WHERE user_id = $1`, userID,
	).Scan(&sub.UserID, &sub.Endpoint, &keys, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query push subscription: %w", err)
	}

	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &sub.Keys); err != nil {
			return nil, false, fmt.Errorf("unmarshal push keys: %w", err)
		}
	}
	return &sub, true, nil
}

func (s *ChannelConfigStore) SetSlackWebhook(ctx context.Context, scope, url string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO slack_webhooks (scope_id, url) VALUES ($1, $2)
		ON CONFLICT (scope_id) DO UPDATE SET url = EXCLUDED.url
	`, scope, url)
	if err != nil {
		return fmt.Errorf("upsert slack webhook: %w", err)
	}
	return nil
}

func (s *ChannelConfigStore) SetPushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	keys, err := json.Marshal(sub.Keys)
	if err != nil {
		return fmt.Errorf("marshal push keys: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, keys) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET endpoint = EXCLUDED.endpoint, keys = EXCLUDED.keys
	`, sub.UserID, sub.Endpoint, keys)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}
