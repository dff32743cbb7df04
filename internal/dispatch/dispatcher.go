package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatchctl/internal/broker"
	"dispatchctl/internal/delivery"
	"dispatchctl/internal/domain"
	"dispatchctl/internal/logging"
	"dispatchctl/internal/notify"
	"dispatchctl/internal/registry"
	"dispatchctl/internal/retry"
	"dispatchctl/internal/store"
)

// FanoutSummary aggregates one dispatch call: how many webhook deliveries
// succeeded or failed, the attempt IDs for follow-up, and the notification
// channel results. Individual delivery failures live here, never in the
// error return of Dispatch.
type FanoutSummary struct {
	EnvelopeID string
	Succeeded  int
	Failed     int
	AttemptIDs []string
	Channels   []notify.ChannelResult
}

// Dispatcher is the fan-out orchestrator and the only entry point
// application code needs. All collaborators are injected; there is no
// process-wide state.
type Dispatcher struct {
	registry  *registry.Registry
	executor  *delivery.Executor
	scheduler *retry.Scheduler
	attempts  store.DeliveryAttemptStore
	notifier  *notify.Notifier
	publisher broker.Publisher
}

func New(
	reg *registry.Registry,
	executor *delivery.Executor,
	scheduler *retry.Scheduler,
	attempts store.DeliveryAttemptStore,
	notifier *notify.Notifier,
	publisher broker.Publisher,
) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		executor:  executor,
		scheduler: scheduler,
		attempts:  attempts,
		notifier:  notifier,
		publisher: publisher,
	}
}

// Dispatch builds the envelope for one event occurrence and delivers it to
// every matching subscriber concurrently, plus the notification channels.
// It returns after every delivery has completed or timed out; one slow or
// failing destination never delays or fails the others. An empty subscriber
// set is a no-op success. Dispatch errors only for programmer errors such
// as an unknown event type.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType domain.EventType, data map[string]any, scope string) (*FanoutSummary, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, eventType)
	}

	env := domain.NewEnvelope(eventType, data, scope)
	ctx = logging.WithEnvelopeID(ctx, env.ID)
	ctx = logging.WithScope(ctx, scope)
	l := logging.FromContext(ctx)

	// Serialize once: these bytes are what gets signed and transmitted,
	// now and on every retry.
	wire, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serialize envelope: %w", err)
	}

	subs, err := d.registry.Resolve(ctx, eventType, scope)
	if err != nil {
		return nil, fmt.Errorf("resolve subscribers: %w", err)
	}

	summary := &FanoutSummary{EnvelopeID: env.ID}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, sub := range subs {
		attempt := &domain.DeliveryAttempt{
			ID:             uuid.New().String(),
			SubscriberID:   sub.ID,
			EnvelopeID:     env.ID,
			EventType:      env.EventType,
			DestinationURL: sub.DestinationURL,
			Payload:        wire,
			Status:         domain.DeliveryStatusPending,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := d.attempts.Create(ctx, attempt); err != nil {
			l.Error("create delivery attempt", slog.String("subscriber_id", sub.ID), slog.Any("error", err))
			mu.Lock()
			summary.Failed++
			mu.Unlock()
			continue
		}

		mu.Lock()
		summary.AttemptIDs = append(summary.AttemptIDs, attempt.ID)
		mu.Unlock()

		wg.Add(1)
		go func(sub *domain.Subscriber, attempt *domain.DeliveryAttempt) {
			defer wg.Done()
			ok := d.deliverOnce(ctx, sub, attempt)
			mu.Lock()
			if ok {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			mu.Unlock()
		}(sub, attempt)
	}

	if d.notifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := d.notifier.Notify(ctx, env)
			mu.Lock()
			summary.Channels = results
			mu.Unlock()
		}()
	}

	wg.Wait()

	l.Info("dispatch complete",
		slog.String("event_type", string(eventType)),
		slog.Int("subscribers", len(subs)),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

// DispatchPayload dispatches a typed producer payload.
func (d *Dispatcher) DispatchPayload(ctx context.Context, p domain.EventPayload, scope string) (*FanoutSummary, error) {
	eventType, data := p.Event()
	return d.Dispatch(ctx, eventType, data, scope)
}

// deliverOnce runs the first execution for an attempt and applies the
// retry policy to its outcome.
func (d *Dispatcher) deliverOnce(ctx context.Context, sub *domain.Subscriber, attempt *domain.DeliveryAttempt) bool {
	l := logging.FromContext(ctx).With(slog.String("subscriber_id", sub.ID))

	switch d.executor.Execute(ctx, sub, attempt) {
	case delivery.OutcomeSuccess:
		return true

	case delivery.OutcomePermanent:
		// Client-side rejection: retrying the same bytes cannot succeed.
		d.abandon(ctx, attempt, l)
		return false

	default:
		if d.scheduler != nil && d.scheduler.ShouldRetry(attempt.AttemptCount) {
			next := time.Now().UTC().Add(d.scheduler.NextDelay(attempt.AttemptCount))
			if err := attempt.MarkRetrying(next); err != nil {
				l.Error("mark retrying", slog.Any("error", err))
			} else if err := d.attempts.Update(ctx, attempt); err != nil {
				l.Error("persist retrying attempt", slog.Any("error", err))
			}
		} else {
			d.abandon(ctx, attempt, l)
		}
		return false
	}
}

func (d *Dispatcher) abandon(ctx context.Context, attempt *domain.DeliveryAttempt, l *slog.Logger) {
	if err := attempt.MarkAbandoned(); err != nil {
		l.Error("mark abandoned", slog.Any("error", err))
		return
	}
	if err := d.attempts.Update(ctx, attempt); err != nil {
		l.Error("persist abandoned attempt", slog.Any("error", err))
	}

	if d.publisher != nil {
		data, err := json.Marshal(retry.RetryMessage{AttemptID: attempt.ID, SubscriberID: attempt.SubscriberID})
		if err == nil {
			if err := d.publisher.PublishToDLQ(ctx, data); err != nil {
				l.Error("publish to DLQ", slog.Any("error", err))
			}
		}
	}

	l.Warn("delivery abandoned",
		slog.String("attempt_id", attempt.ID),
		slog.Int("attempts", attempt.AttemptCount),
		slog.String("last_error", attempt.LastError),
	)
}
