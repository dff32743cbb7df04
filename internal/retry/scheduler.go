package retry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"dispatchctl/internal/broker"
	"dispatchctl/internal/logging"
	"dispatchctl/internal/store"
)

// RetrySubject is the broker subject due attempts are re-enqueued on.
const RetrySubject = "deliveries.retry"

// RetryMessage is the broker payload for one due attempt. The worker loads
// the full attempt record by ID; the message is just a pointer.
type RetryMessage struct {
	AttemptID    string `json:"attempt_id"`
	SubscriberID string `json:"subscriber_id"`
}

// Scheduler owns the retry policy (budget and backoff) and, when given a
// store and publisher, runs the background sweep that re-enqueues due
// attempts for the delivery worker.
type Scheduler struct {
	config       Config
	backoff      *Backoff
	attempts     store.DeliveryAttemptStore
	publisher    broker.Publisher
	pollInterval time.Duration
	batchSize    int
}

func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{
		config: cfg,
		backoff: &Backoff{
			BaseDelay: cfg.InitialBackoff,
			MaxDelay:  cfg.MaxBackoff,
			Factor:    cfg.BackoffMultiplier,
			Jitter:    cfg.JitterFactor,
		},
		pollInterval: 5 * time.Second,
		batchSize:    50,
	}
}

// WithStore adds the attempt store for background sweeping.
func (s *Scheduler) WithStore(attempts store.DeliveryAttemptStore) *Scheduler {
	s.attempts = attempts
	return s
}

// WithPublisher adds the broker publisher for background sweeping.
func (s *Scheduler) WithPublisher(pub broker.Publisher) *Scheduler {
	s.publisher = pub
	return s
}

// ShouldRetry reports whether an attempt with the given execution count has
// budget left.
func (s *Scheduler) ShouldRetry(attemptCount int) bool {
	return attemptCount < s.config.MaxAttempts
}

func (s *Scheduler) NextDelay(attemptCount int) time.Duration {
	return s.backoff.NextDelay(attemptCount)
}

func (s *Scheduler) MaxAttempts() int {
	return s.config.MaxAttempts
}

// Start runs the background sweep loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.attempts == nil || s.publisher == nil {
		slog.Warn("retry scheduler started in policy-only mode")
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("retry sweep started",
		slog.Int("maxAttempts", s.config.MaxAttempts),
		slog.Duration("pollInterval", s.pollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("retry sweep shutting down")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep re-enqueues every due attempt. The NextRetryAt hold is written
// first, as a conditional update that only touches rows still RETRYING: a
// worker may finish the attempt at any moment, and an unconditional write
// after publishing could drag a terminal row back to RETRYING. Each
// attempt is independent; a failed hold or publish affects only that
// attempt and a later sweep picks it up again.
func (s *Scheduler) sweep(ctx context.Context) {
	due, err := s.attempts.GetDueRetries(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		slog.Error("sweep: fetch due attempts", slog.Any("error", err))
		return
	}

	for _, attempt := range due {
		ctx := logging.WithEnvelopeID(ctx, attempt.EnvelopeID)
		ctx = logging.WithSubscriberID(ctx, attempt.SubscriberID)
		l := logging.FromContext(ctx)

		data, err := json.Marshal(RetryMessage{
			AttemptID:    attempt.ID,
			SubscriberID: attempt.SubscriberID,
		})
		if err != nil {
			l.Error("sweep: marshal retry message", slog.Any("error", err))
			continue
		}

		hold := time.Now().UTC().Add(s.pollInterval * 4)
		held, err := s.attempts.HoldRetry(ctx, attempt.ID, hold)
		if err != nil {
			l.Error("sweep: hold attempt", slog.Any("error", err))
			continue
		}
		if !held {
			// Finished by a worker between the fetch and the hold.
			continue
		}

		if err := s.publisher.Publish(ctx, RetrySubject, data); err != nil {
			l.Error("sweep: publish retry", slog.Any("error", err))
			continue
		}

		l.Info("attempt re-enqueued for retry",
			slog.String("attempt_id", attempt.ID),
			slog.Int("attempt", attempt.AttemptCount),
		)
	}
}
