package delivery

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"dispatchctl/internal/domain"
	"dispatchctl/internal/events"
	"dispatchctl/internal/logging"
	"dispatchctl/internal/signature"
	"dispatchctl/internal/store"
)

// DefaultTimeout bounds how long one delivery may take. A destination that
// neither responds nor errors within this window is recorded as failed.
const DefaultTimeout = 30 * time.Second

// Outcome classifies one execution so the retry scheduler can decide
// whether the failure is worth spending budget on.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomePermanent
)

// Executor performs the transmission of one envelope to one subscriber and
// records the result on the delivery attempt. It never schedules retries
// itself; that belongs to the retry scheduler.
type Executor struct {
	client   *httpClient
	attempts store.DeliveryAttemptStore
	hub      *events.Hub
}

func NewExecutor(timeout time.Duration, attempts store.DeliveryAttemptStore, hub *events.Hub) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		client:   newHTTPClient(timeout),
		attempts: attempts,
		hub:      hub,
	}
}

// Execute performs one delivery try against the attempt's destination,
// mutates the attempt record with the outcome, and persists it. The wire
// bytes on the attempt are signed as-is; retries transmit identical bytes.
func (e *Executor) Execute(ctx context.Context, sub *domain.Subscriber, attempt *domain.DeliveryAttempt) Outcome {
	l := logging.FromContext(ctx).With(
		slog.String("subscriber_id", sub.ID),
		slog.String("destination", attempt.DestinationURL),
	)

	sig := signature.Sign(attempt.Payload, sub.SharedSecret)
	resp, err := e.client.post(ctx, attempt.DestinationURL, attempt.Payload, sig, string(attempt.EventType), attempt.EnvelopeID)

	var outcome Outcome
	switch {
	case err != nil:
		msg := err.Error()
		if isTimeout(err) {
			msg = "timeout: " + msg
		}
		if recErr := attempt.RecordFailure(0, "", msg); recErr != nil {
			l.Error("record failure", slog.Any("error", recErr))
		}
		outcome = OutcomeTransient
		l.Warn("delivery transport error", slog.String("error", msg), slog.Int("attempt", attempt.AttemptCount))

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if recErr := attempt.RecordSuccess(resp.StatusCode, resp.Body); recErr != nil {
			l.Error("record success", slog.Any("error", recErr))
		}
		outcome = OutcomeSuccess
		l.Info("delivered", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt.AttemptCount))

	default:
		if recErr := attempt.RecordFailure(resp.StatusCode, resp.Body, ""); recErr != nil {
			l.Error("record failure", slog.Any("error", recErr))
		}
		outcome = classifyStatus(resp.StatusCode)
		l.Warn("delivery rejected", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt.AttemptCount))
	}

	if err := e.attempts.Update(ctx, attempt); err != nil {
		l.Error("persist delivery attempt", slog.Any("error", err))
	}

	e.publish(attempt)
	return outcome
}

func (e *Executor) publish(attempt *domain.DeliveryAttempt) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(events.DeliveryEvent{
		AttemptID:   attempt.ID,
		EnvelopeID:  attempt.EnvelopeID,
		Destination: attempt.DestinationURL,
		Status:      attempt.Status,
		Attempt:     attempt.AttemptCount,
		Message:     attempt.LastError,
		Timestamp:   time.Now(),
	})
}

// classifyStatus treats server-side and throttling statuses as transient;
// the remaining 4xx mean the request itself is unacceptable and retrying
// the same bytes cannot succeed.
func classifyStatus(code int) Outcome {
	switch {
	case code >= 500:
		return OutcomeTransient
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return OutcomeTransient
	case code >= 400:
		return OutcomePermanent
	default:
		return OutcomeTransient
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Timeout()
	}
	return false
}
