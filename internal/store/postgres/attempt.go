package postgres

import (
	"context"
	"fmt"
	"time"

	"dispatchctl/internal/domain"
)

type DeliveryAttemptStore struct {
	db *DB
}

func NewDeliveryAttemptStore(db *DB) *DeliveryAttemptStore {
	return &DeliveryAttemptStore{db: db}
}

const attemptColumns = `id, subscriber_id, envelope_id, event_type, destination_url, payload, status,
	attempt_count, response_status, response_body, last_error, last_attempt_at, next_retry_at, created_at, updated_at`

func (s *DeliveryAttemptStore) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `
		INSERT INTO delivery_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.SubscriberID,
		attempt.EnvelopeID,
		attempt.EventType,
		attempt.DestinationURL,
		attempt.Payload,
		attempt.Status,
		attempt.AttemptCount,
		nullableInt(attempt.ResponseStatus),
		attempt.ResponseBody,
		attempt.LastError,
		nullableTime(attempt.LastAttemptAt),
		attempt.NextRetryAt,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

func (s *DeliveryAttemptStore) Update(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `
		UPDATE delivery_attempts
		SET status = $1, attempt_count = $2, response_status = $3, response_body = $4,
		    last_error = $5, last_attempt_at = $6, next_retry_at = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := s.db.Pool.Exec(ctx, query,
		attempt.Status,
		attempt.AttemptCount,
		nullableInt(attempt.ResponseStatus),
		attempt.ResponseBody,
		attempt.LastError,
		nullableTime(attempt.LastAttemptAt),
		attempt.NextRetryAt,
		attempt.UpdatedAt,
		attempt.ID,
	)
	if err != nil {
		return fmt.Errorf("update delivery attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delivery attempt %s not found", attempt.ID)
	}
	return nil
}

func (s *DeliveryAttemptStore) GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM delivery_attempts WHERE id = $1`
	return scanAttempt(s.db.Pool.QueryRow(ctx, query, id))
}

func (s *DeliveryAttemptStore) List(ctx context.Context, limit int) ([]*domain.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + attemptColumns + ` FROM delivery_attempts ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.DeliveryAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *DeliveryAttemptStore) GetDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.DeliveryAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM delivery_attempts
		WHERE status = 'RETRYING' AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2
	`

	rows, err := s.db.Pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due retries: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.DeliveryAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *DeliveryAttemptStore) HoldRetry(ctx context.Context, id string, until time.Time) (bool, error) {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE delivery_attempts
		SET next_retry_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'RETRYING'
	`, until, id)
	if err != nil {
		return false, fmt.Errorf("hold delivery attempt: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func scanAttempt(row rowScanner) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	var responseStatus *int
	var lastAttemptAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.SubscriberID,
		&a.EnvelopeID,
		&a.EventType,
		&a.DestinationURL,
		&a.Payload,
		&a.Status,
		&a.AttemptCount,
		&responseStatus,
		&a.ResponseBody,
		&a.LastError,
		&lastAttemptAt,
		&a.NextRetryAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan delivery attempt: %w", err)
	}

	if responseStatus != nil {
		a.ResponseStatus = *responseStatus
	}
	if lastAttemptAt != nil {
		a.LastAttemptAt = *lastAttemptAt
	}
	return &a, nil
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
