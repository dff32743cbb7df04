package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dispatchctl/internal/delivery"
	"dispatchctl/internal/dispatch"
	"dispatchctl/internal/domain"
	"dispatchctl/internal/events"
	"dispatchctl/internal/registry"
	"dispatchctl/internal/retry"
	"dispatchctl/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	subs := memory.NewSubscriberStore()
	attempts := memory.NewDeliveryAttemptStore()
	reg := registry.New(subs)
	hub := events.NewHub()
	exec := delivery.NewExecutor(2*time.Second, attempts, hub)
	sched := retry.NewScheduler(retry.DefaultConfig())
	d := dispatch.New(reg, exec, sched, attempts, nil, nil)
	return NewServer(d, reg, attempts, hub), reg
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRegisterSubscriberEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{
		"name": "billing",
		"destination_url": "https://hooks.example.com/billing",
		"subscribed_events": ["payment.success"],
		"scope_id": "org-1"
	}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/subscribers", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID           string `json:"id"`
		SharedSecret string `json:"shared_secret"`
		APIKey       string `json:"api_key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || resp.SharedSecret == "" || resp.APIKey == "" {
		t.Errorf("incomplete registration response: %+v", resp)
	}

	// the secret is never repeated on the list endpoint
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscribers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), resp.SharedSecret) {
		t.Error("shared secret leaked on list endpoint")
	}
	if strings.Contains(rec.Body.String(), resp.APIKey) {
		t.Error("api key leaked on list endpoint")
	}
}

func TestRegisterSubscriberValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"name": "", "destination_url": "https://x.example.com", "subscribed_events": ["user.created"]}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/subscribers", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp["error"] == "" {
		t.Error("error body missing message")
	}
}

func TestDispatchEndpoint(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer dest.Close()

	srv, reg := newTestServer(t)
	sub := &domain.Subscriber{
		Name:             "audit",
		DestinationURL:   dest.URL,
		SubscribedEvents: []domain.EventType{domain.EventUserCreated},
		Active:           true,
	}
	if _, err := reg.Register(context.Background(), sub); err != nil {
		t.Fatalf("register: %v", err)
	}

	body := `{"event_type": "user.created", "data": {"user_id": "u1"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		EnvelopeID string `json:"envelope_id"`
		Succeeded  int    `json:"succeeded"`
		Failed     int    `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EnvelopeID == "" {
		t.Error("missing envelope_id")
	}
	if resp.Succeeded != 1 || resp.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 1/0", resp.Succeeded, resp.Failed)
	}

	// the attempt shows up on the list endpoint
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/attempts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("attempts status = %d", rec.Code)
	}
	var attempts []struct {
		EnvelopeID string `json:"envelope_id"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &attempts); err != nil {
		t.Fatalf("decode attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].EnvelopeID != resp.EnvelopeID {
		t.Errorf("attempts = %+v", attempts)
	}
	if attempts[0].Status != string(domain.DeliveryStatusSuccess) {
		t.Errorf("attempt status = %s", attempts[0].Status)
	}
}

func TestDispatchSurvivesClientDisconnect(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer dest.Close()

	srv, reg := newTestServer(t)
	sub := &domain.Subscriber{
		Name:             "slow-consumer",
		DestinationURL:   dest.URL,
		SubscribedEvents: []domain.EventType{domain.EventUserCreated},
		Active:           true,
	}
	if _, err := reg.Register(context.Background(), sub); err != nil {
		t.Fatalf("register: %v", err)
	}

	// the client goes away while the delivery is still in flight
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	body := `{"event_type": "user.created", "data": {"user_id": "u1"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/attempts", nil))
	var attempts []struct {
		Status    string `json:"status"`
		LastError string `json:"last_error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &attempts); err != nil {
		t.Fatalf("decode attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	if attempts[0].Status != string(domain.DeliveryStatusSuccess) {
		t.Errorf("status = %s (lastError %q); delivery was cancelled by the client disconnect",
			attempts[0].Status, attempts[0].LastError)
	}
}

func TestDispatchEndpointRejectsUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"event_type": "mystery.event"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeactivateSubscriberEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	sub := &domain.Subscriber{
		Name:             "temp",
		DestinationURL:   "https://x.example.com/hook",
		SubscribedEvents: []domain.EventType{domain.EventUserCreated},
		Active:           true,
	}
	if _, err := reg.Register(context.Background(), sub); err != nil {
		t.Fatalf("register: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/subscribers/"+sub.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/subscribers/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d for unknown id, want 404", rec.Code)
	}
}
