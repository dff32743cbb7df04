package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"dispatchctl/internal/domain"
)

type SubscriberStore struct {
	db *DB
}

func NewSubscriberStore(db *DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

const subscriberColumns = `id, name, destination_url, shared_secret, api_key_hash, subscribed_events, active, scope_id, created_at`

func (s *SubscriberStore) Create(ctx context.Context, sub *domain.Subscriber) error {
	events, err := json.Marshal(sub.SubscribedEvents)
	if err != nil {
		return fmt.Errorf("marshal subscribed events: %w", err)
	}

	query := `
		INSERT INTO subscribers (` + subscriberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.Pool.Exec(ctx, query,
		sub.ID,
		sub.Name,
		sub.DestinationURL,
		sub.SharedSecret,
		sub.APIKeyHash,
		events,
		sub.Active,
		sub.ScopeID,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

func (s *SubscriberStore) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`
	row := s.db.Pool.QueryRow(ctx, query, id)
	return scanSubscriber(row)
}

func (s *SubscriberStore) List(ctx context.Context) ([]*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY created_at ASC`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// FindActive applies the registry filtering rules in SQL: active
// subscribers subscribed to the event type whose scope is empty (global)
// or equal to the dispatch scope. Result ordering is unspecified.
func (s *SubscriberStore) FindActive(ctx context.Context, eventType domain.EventType, scope string) ([]*domain.Subscriber, error) {
	eventJSON, err := json.Marshal([]domain.EventType{eventType})
	if err != nil {
		return nil, fmt.Errorf("marshal event type: %w", err)
	}

	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE active = TRUE
		  AND subscribed_events @> $1::jsonb
		  AND (scope_id = '' OR ($2 <> '' AND scope_id = $2))
	`

	rows, err := s.db.Pool.Query(ctx, query, eventJSON, scope)
	if err != nil {
		return nil, fmt.Errorf("query active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SubscriberStore) SetActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.Pool.Exec(ctx, `UPDATE subscribers SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("update subscriber active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("subscriber %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	var eventsJSON []byte

	err := row.Scan(
		&sub.ID,
		&sub.Name,
		&sub.DestinationURL,
		&sub.SharedSecret,
		&sub.APIKeyHash,
		&eventsJSON,
		&sub.Active,
		&sub.ScopeID,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}

	if err := json.Unmarshal(eventsJSON, &sub.SubscribedEvents); err != nil {
		return nil, fmt.Errorf("unmarshal subscribed events: %w", err)
	}
	return &sub, nil
}
