package retry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"dispatchctl/internal/domain"
	"dispatchctl/internal/store/memory"
)

func TestBackoffGrowsExponentially(t *testing.T) {
	b := &Backoff{
		BaseDelay: 1 * time.Second,
		MaxDelay:  5 * time.Minute,
		Factor:    2.0,
		Jitter:    0, // deterministic for the assertion
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for attempt, expected := range want {
		if got := b.NextDelay(attempt); got != expected {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestBackoffCappedAtMax(t *testing.T) {
	b := &Backoff{
		BaseDelay: 1 * time.Second,
		MaxDelay:  30 * time.Second,
		Factor:    2.0,
		Jitter:    0,
	}
	for attempt := 5; attempt < 20; attempt++ {
		if got := b.NextDelay(attempt); got > 30*time.Second {
			t.Errorf("NextDelay(%d) = %v exceeds cap", attempt, got)
		}
	}
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := &Backoff{
		BaseDelay: 1 * time.Second,
		MaxDelay:  5 * time.Minute,
		Factor:    2.0,
		Jitter:    0.2,
	}
	for i := 0; i < 100; i++ {
		got := b.NextDelay(2) // base 4s, jitter ±800ms
		if got < 3200*time.Millisecond || got > 4800*time.Millisecond {
			t.Fatalf("jittered delay %v outside [3.2s, 4.8s]", got)
		}
	}
}

func TestBackoffFloor(t *testing.T) {
	b := &Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Minute, Factor: 1.0}
	if got := b.NextDelay(0); got < 100*time.Millisecond {
		t.Errorf("NextDelay = %v, want at least 100ms floor", got)
	}
}

func TestSchedulerBudget(t *testing.T) {
	s := NewScheduler(Config{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Minute, BackoffMultiplier: 2.0})

	for count := 0; count < 5; count++ {
		if !s.ShouldRetry(count) {
			t.Errorf("ShouldRetry(%d) = false, want true", count)
		}
	}
	if s.ShouldRetry(5) {
		t.Error("ShouldRetry(5) = true, budget of 5 should be exhausted")
	}
	if s.ShouldRetry(6) {
		t.Error("ShouldRetry(6) = true")
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) PublishToDLQ(ctx context.Context, data []byte) error { return nil }
func (p *recordingPublisher) Close() error                                        { return nil }

func seedRetrying(t *testing.T, attempts *memory.DeliveryAttemptStore, id string, nextRetryAt time.Time) {
	t.Helper()
	a := &domain.DeliveryAttempt{
		ID:             id,
		SubscriberID:   "sub-" + id,
		EnvelopeID:     "env-" + id,
		EventType:      domain.EventSummaryCompleted,
		DestinationURL: "https://example.com/hook",
		Payload:        []byte(`{}`),
		Status:         domain.DeliveryStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := attempts.Create(context.Background(), a); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	if err := a.RecordFailure(500, "", ""); err != nil {
		t.Fatalf("fail %s: %v", id, err)
	}
	if err := a.MarkRetrying(nextRetryAt); err != nil {
		t.Fatalf("mark retrying %s: %v", id, err)
	}
	if err := attempts.Update(context.Background(), a); err != nil {
		t.Fatalf("update %s: %v", id, err)
	}
}

func TestSweepPublishesDueAttempts(t *testing.T) {
	attempts := memory.NewDeliveryAttemptStore()
	pub := &recordingPublisher{}

	seedRetrying(t, attempts, "due-1", time.Now().Add(-time.Minute))
	seedRetrying(t, attempts, "due-2", time.Now().Add(-time.Second))
	seedRetrying(t, attempts, "future", time.Now().Add(time.Hour))

	s := NewScheduler(DefaultConfig()).WithStore(attempts).WithPublisher(pub)
	s.sweep(context.Background())

	if len(pub.payloads) != 2 {
		t.Fatalf("published %d messages, want 2 (only due attempts)", len(pub.payloads))
	}
	for _, subject := range pub.subjects {
		if subject != RetrySubject {
			t.Errorf("published to %q, want %q", subject, RetrySubject)
		}
	}

	got := map[string]bool{}
	for _, data := range pub.payloads {
		var msg RetryMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode retry message: %v", err)
		}
		got[msg.AttemptID] = true
		if msg.SubscriberID != "sub-"+msg.AttemptID {
			t.Errorf("subscriber ID %q does not match attempt %q", msg.SubscriberID, msg.AttemptID)
		}
	}
	if !got["due-1"] || !got["due-2"] {
		t.Errorf("published attempts %v, want due-1 and due-2", got)
	}
}

// completingPublisher finishes the attempt the way a fast worker would,
// before Publish returns to the sweep.
type completingPublisher struct {
	attempts *memory.DeliveryAttemptStore
}

func (p *completingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	var msg RetryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	attempt, err := p.attempts.GetByID(ctx, msg.AttemptID)
	if err != nil {
		return err
	}
	if err := attempt.RecordSuccess(200, ""); err != nil {
		return err
	}
	return p.attempts.Update(ctx, attempt)
}

func (p *completingPublisher) PublishToDLQ(ctx context.Context, data []byte) error { return nil }
func (p *completingPublisher) Close() error                                        { return nil }

func TestSweepNeverRevertsCompletedAttempt(t *testing.T) {
	attempts := memory.NewDeliveryAttemptStore()
	seedRetrying(t, attempts, "racy", time.Now().Add(-time.Minute))

	s := NewScheduler(DefaultConfig()).WithStore(attempts).WithPublisher(&completingPublisher{attempts: attempts})
	s.sweep(context.Background())

	stored, err := attempts.GetByID(context.Background(), "racy")
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if stored.Status != domain.DeliveryStatusSuccess {
		t.Errorf("status = %s; sweep dragged a finished attempt backward", stored.Status)
	}
	if stored.NextRetryAt != nil {
		t.Errorf("NextRetryAt = %v on a terminal attempt, want nil", stored.NextRetryAt)
	}

	// a later sweep must not pick the finished attempt up again
	s.sweep(context.Background())
	stored, err = attempts.GetByID(context.Background(), "racy")
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if stored.Status != domain.DeliveryStatusSuccess {
		t.Errorf("status = %s after second sweep", stored.Status)
	}
}

func TestHoldRetryConditional(t *testing.T) {
	attempts := memory.NewDeliveryAttemptStore()
	ctx := context.Background()
	seedRetrying(t, attempts, "r1", time.Now().Add(-time.Minute))

	until := time.Now().Add(time.Minute)
	held, err := attempts.HoldRetry(ctx, "r1", until)
	if err != nil {
		t.Fatalf("HoldRetry: %v", err)
	}
	if !held {
		t.Fatal("HoldRetry = false for a RETRYING attempt")
	}

	attempt, err := attempts.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if err := attempt.RecordSuccess(200, ""); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if err := attempts.Update(ctx, attempt); err != nil {
		t.Fatalf("update: %v", err)
	}

	held, err = attempts.HoldRetry(ctx, "r1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("HoldRetry on terminal attempt: %v", err)
	}
	if held {
		t.Error("HoldRetry = true for a SUCCESS attempt")
	}

	stored, err := attempts.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if stored.NextRetryAt != nil {
		t.Error("refused hold still wrote NextRetryAt")
	}
}

func TestSchedulerNextDelay(t *testing.T) {
	s := NewScheduler(Config{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
	})

	if got := s.NextDelay(0); got != time.Second {
		t.Errorf("NextDelay(0) = %v, want 1s", got)
	}
	if got := s.NextDelay(3); got != 8*time.Second {
		t.Errorf("NextDelay(3) = %v, want 8s", got)
	}
	if got := s.NextDelay(20); got != time.Minute {
		t.Errorf("NextDelay(20) = %v, want the 1m cap", got)
	}
}

func TestSweepHoldsEnqueuedAttempts(t *testing.T) {
	attempts := memory.NewDeliveryAttemptStore()
	pub := &recordingPublisher{}

	seedRetrying(t, attempts, "due-1", time.Now().Add(-time.Minute))

	s := NewScheduler(DefaultConfig()).WithStore(attempts).WithPublisher(pub)
	s.sweep(context.Background())
	s.sweep(context.Background())

	// the hold window keeps a second sweep from re-enqueuing the same attempt
	if len(pub.payloads) != 1 {
		t.Errorf("published %d messages across two sweeps, want 1", len(pub.payloads))
	}

	stored, err := attempts.GetByID(context.Background(), "due-1")
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if stored.NextRetryAt == nil || !stored.NextRetryAt.After(time.Now()) {
		t.Error("enqueued attempt's NextRetryAt should be pushed into the future")
	}
	if stored.Status != domain.DeliveryStatusRetrying {
		t.Errorf("status = %s, sweep must not change status", stored.Status)
	}
}
