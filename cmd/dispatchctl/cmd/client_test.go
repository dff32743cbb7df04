package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "dc_testkey")
	if _, err := c.listSubscribers(context.Background()); err != nil {
		t.Fatalf("listSubscribers: %v", err)
	}
	if gotAuth != "Bearer dc_testkey" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestClientNormalizesAddr(t *testing.T) {
	c := newAPIClient("localhost:8080", "")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q", c.baseURL)
	}

	c = newAPIClient("https://dispatch.example.com/", "")
	if c.baseURL != "https://dispatch.example.com" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "unknown event type \"mystery.event\""}`))
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	_, err := c.dispatch(context.Background(), dispatchRequest{EventType: "mystery.event"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "mystery.event") {
		t.Errorf("error = %v, want server message surfaced", err)
	}
}

func TestClientDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"envelope_id": "env-1", "succeeded": 2, "failed": 0}`))
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	resp, err := c.dispatch(context.Background(), dispatchRequest{
		EventType: "summary.completed",
		Data:      map[string]any{"title": "Weekly Standup"},
		Scope:     "org-42",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.EnvelopeID != "env-1" || resp.Succeeded != 2 {
		t.Errorf("response = %+v", resp)
	}
}
