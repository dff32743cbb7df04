package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscribers (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			destination_url   TEXT NOT NULL,
			shared_secret     TEXT NOT NULL,
			api_key_hash      TEXT NOT NULL,
			subscribed_events JSONB NOT NULL,
			active            BOOLEAN NOT NULL DEFAULT TRUE,
			scope_id          TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS delivery_attempts (
			id              TEXT PRIMARY KEY,
			subscriber_id   TEXT REFERENCES subscribers(id),
			envelope_id     TEXT NOT NULL,
			event_type      TEXT NOT NULL,
			destination_url TEXT NOT NULL,
			payload         BYTEA NOT NULL,
			status          TEXT NOT NULL CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED', 'RETRYING', 'ABANDONED')),
			attempt_count   INT NOT NULL DEFAULT 0,
			response_status INT,
			response_body   TEXT,
			last_error      TEXT,
			last_attempt_at TIMESTAMPTZ,
			next_retry_at   TIMESTAMPTZ,
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			updated_at      TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			organization_id TEXT NOT NULL DEFAULT '',
			envelope_id     TEXT NOT NULL,
			channel         TEXT NOT NULL,
			title           TEXT NOT NULL,
			body            TEXT NOT NULL,
			template_data   JSONB,
			delivered_at    TIMESTAMPTZ,
			read_at         TIMESTAMPTZ,
			created_at      TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS slack_webhooks (
			scope_id   TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS push_subscriptions (
			user_id    TEXT PRIMARY KEY,
			endpoint   TEXT NOT NULL,
			keys       JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers(active);
		CREATE INDEX IF NOT EXISTS idx_delivery_attempts_envelope_id ON delivery_attempts(envelope_id);
		CREATE INDEX IF NOT EXISTS idx_delivery_attempts_retry ON delivery_attempts(status, next_retry_at);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);
	`

	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
