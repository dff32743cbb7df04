package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"dispatchctl/internal/broker"
	"dispatchctl/internal/delivery"
	"dispatchctl/internal/domain"
	"dispatchctl/internal/logging"
	"dispatchctl/internal/retry"
	"dispatchctl/internal/store"
)

// RetryWorker consumes due delivery attempts from the broker and
// re-executes them. The attempt store stays authoritative: the worker
// always acks and records the next state on the attempt row, and the sweep
// re-enqueues whatever is still due. Abandoned attempts go to the DLQ.
type RetryWorker struct {
	subscribers store.SubscriberStore
	attempts    store.DeliveryAttemptStore
	executor    *delivery.Executor
	consumer    jetstream.Consumer
	publisher   broker.Publisher
	scheduler   *retry.Scheduler
}

func NewRetryWorker(
	subscribers store.SubscriberStore,
	attempts store.DeliveryAttemptStore,
	executor *delivery.Executor,
	consumer jetstream.Consumer,
	publisher broker.Publisher,
	scheduler *retry.Scheduler,
) *RetryWorker {
	return &RetryWorker{
		subscribers: subscribers,
		attempts:    attempts,
		executor:    executor,
		consumer:    consumer,
		publisher:   publisher,
		scheduler:   scheduler,
	}
}

func (w *RetryWorker) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msgs, err := w.consumer.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				slog.Error("fetch retry messages", slog.Any("error", err))
				continue
			}

			for msg := range msgs.Messages() {
				w.processMessage(ctx, msg)
			}
		}
	}
}

func (w *RetryWorker) processMessage(ctx context.Context, msg jetstream.Msg) {
	// The message only points at the attempt; state lives in the store.
	var rm retry.RetryMessage
	if err := json.Unmarshal(msg.Data(), &rm); err != nil {
		slog.Error("unmarshal retry message", slog.Any("error", err))
		msg.Ack()
		return
	}

	ctx = logging.WithSubscriberID(ctx, rm.SubscriberID)
	l := logging.FromContext(ctx).With(slog.String("attempt_id", rm.AttemptID))

	attempt, err := w.attempts.GetByID(ctx, rm.AttemptID)
	if err != nil {
		l.Error("load attempt", slog.Any("error", err))
		msg.Ack()
		return
	}
	if attempt.Status != domain.DeliveryStatusRetrying {
		// Already terminal (or re-enqueued twice); nothing to do.
		msg.Ack()
		return
	}

	sub, err := w.subscribers.GetByID(ctx, attempt.SubscriberID)
	if err != nil {
		l.Error("load subscriber", slog.Any("error", err))
		msg.Ack()
		return
	}
	if !sub.Active {
		// Deactivated since the attempt was scheduled; stop retrying.
		w.abandon(ctx, attempt, l)
		msg.Ack()
		return
	}

	ctx = logging.WithEnvelopeID(ctx, attempt.EnvelopeID)

	switch w.executor.Execute(ctx, sub, attempt) {
	case delivery.OutcomeSuccess:
		// Execute already persisted the terminal state.

	case delivery.OutcomePermanent:
		w.abandon(ctx, attempt, l)

	default:
		if w.scheduler.ShouldRetry(attempt.AttemptCount) {
			next := time.Now().UTC().Add(w.scheduler.NextDelay(attempt.AttemptCount))
			if err := attempt.MarkRetrying(next); err != nil {
				l.Error("mark retrying", slog.Any("error", err))
			} else if err := w.attempts.Update(ctx, attempt); err != nil {
				l.Error("persist retrying attempt", slog.Any("error", err))
			}
		} else {
			w.abandon(ctx, attempt, l)
		}
	}

	msg.Ack()
}

func (w *RetryWorker) abandon(ctx context.Context, attempt *domain.DeliveryAttempt, l *slog.Logger) {
	if err := attempt.MarkAbandoned(); err != nil {
		l.Error("mark abandoned", slog.Any("error", err))
		return
	}
	if err := w.attempts.Update(ctx, attempt); err != nil {
		l.Error("persist abandoned attempt", slog.Any("error", err))
	}

	data, err := json.Marshal(retry.RetryMessage{AttemptID: attempt.ID, SubscriberID: attempt.SubscriberID})
	if err == nil {
		if err := w.publisher.PublishToDLQ(ctx, data); err != nil {
			l.Error("publish to DLQ", slog.Any("error", err))
		}
	}

	l.Warn("max retries exhausted, delivery abandoned",
		slog.Int("attempts", attempt.AttemptCount),
		slog.Int("maxAttempts", w.scheduler.MaxAttempts()),
	)
}
