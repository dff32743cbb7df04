package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dispatchctl/internal/domain"
)

type NotificationStore struct {
	db *DB
}

func NewNotificationStore(db *DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	templateData, err := json.Marshal(n.TemplateData)
	if err != nil {
		return fmt.Errorf("marshal template data: %w", err)
	}

	query := `
		INSERT INTO notifications (id, user_id, organization_id, envelope_id, channel, title, body, template_data, delivered_at, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.db.Pool.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.OrganizationID,
		n.EnvelopeID,
		n.Channel,
		n.Title,
		n.Body,
		templateData,
		n.DeliveredAt,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, organization_id, envelope_id, channel, title, body, template_data, delivered_at, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var templateData []byte

		err := rows.Scan(
			&n.ID, &n.UserID, &n.OrganizationID, &n.EnvelopeID, &n.Channel,
			&n.Title, &n.Body, &templateData, &n.DeliveredAt, &n.ReadAt, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}

		if len(templateData) > 0 {
			if err := json.Unmarshal(templateData, &n.TemplateData); err != nil {
				return nil, fmt.Errorf("unmarshal template data: %w", err)
			}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.Pool.Exec(ctx, `UPDATE notifications SET read_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}
