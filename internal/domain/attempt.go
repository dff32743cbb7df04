package domain

import (
	"errors"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusSuccess   DeliveryStatus = "SUCCESS"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
	DeliveryStatusRetrying  DeliveryStatus = "RETRYING"
	DeliveryStatusAbandoned DeliveryStatus = "ABANDONED"
)

// Terminal reports whether the status permits no further transitions.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusSuccess || s == DeliveryStatusAbandoned
}

// validTransitions is the forward-only state machine. FAILED marks the raw
// outcome of one execution; the scheduler immediately moves it on to
// RETRYING or ABANDONED within the same processing step. RETRYING may
// re-enter itself when a later execution fails with budget remaining.
var validTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:  {DeliveryStatusSuccess, DeliveryStatusFailed, DeliveryStatusRetrying, DeliveryStatusAbandoned},
	DeliveryStatusFailed:   {DeliveryStatusRetrying, DeliveryStatusAbandoned},
	DeliveryStatusRetrying: {DeliveryStatusSuccess, DeliveryStatusFailed, DeliveryStatusRetrying, DeliveryStatusAbandoned},
}

var ErrInvalidTransition = errors.New("invalid delivery status transition")

// DeliveryAttempt tracks delivery of one envelope to one subscriber across
// every execution. AttemptCount strictly increases; status never moves
// backward. Payload holds the exact wire bytes produced at dispatch time so
// retries transmit (and sign) the same bytes as the first attempt.
type DeliveryAttempt struct {
	ID             string
	SubscriberID   string
	EnvelopeID     string
	EventType      EventType
	DestinationURL string
	Payload        []byte
	Status         DeliveryStatus
	AttemptCount   int
	ResponseStatus int
	ResponseBody   string
	LastError      string
	LastAttemptAt  time.Time
	NextRetryAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *DeliveryAttempt) transition(to DeliveryStatus) error {
	for _, next := range validTransitions[a.Status] {
		if next == to {
			a.Status = to
			a.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrInvalidTransition
}

// RecordSuccess finalizes the attempt after a 2xx response.
func (a *DeliveryAttempt) RecordSuccess(statusCode int, body string) error {
	if err := a.transition(DeliveryStatusSuccess); err != nil {
		return err
	}
	a.AttemptCount++
	a.LastAttemptAt = time.Now().UTC()
	a.ResponseStatus = statusCode
	a.ResponseBody = body
	a.LastError = ""
	a.NextRetryAt = nil
	return nil
}

// RecordFailure records the raw outcome of one failed execution. The caller
// decides next via MarkRetrying or MarkAbandoned.
func (a *DeliveryAttempt) RecordFailure(statusCode int, body, errMsg string) error {
	if err := a.transition(DeliveryStatusFailed); err != nil {
		return err
	}
	a.AttemptCount++
	a.LastAttemptAt = time.Now().UTC()
	a.ResponseStatus = statusCode
	a.ResponseBody = body
	a.LastError = errMsg
	return nil
}

func (a *DeliveryAttempt) MarkRetrying(nextRetryAt time.Time) error {
	if err := a.transition(DeliveryStatusRetrying); err != nil {
		return err
	}
	a.NextRetryAt = &nextRetryAt
	return nil
}

func (a *DeliveryAttempt) MarkAbandoned() error {
	if err := a.transition(DeliveryStatusAbandoned); err != nil {
		return err
	}
	a.NextRetryAt = nil
	return nil
}
