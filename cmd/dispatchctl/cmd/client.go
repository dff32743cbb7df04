package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient is a thin HTTP client for the dispatchd API.
type apiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newAPIClient(serverAddr, apiKey string) *apiClient {
	base := serverAddr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type dispatchRequest struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	Scope     string         `json:"scope,omitempty"`
}

type dispatchResponse struct {
	EnvelopeID string   `json:"envelope_id"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	AttemptIDs []string `json:"attempt_ids"`
}

func (c *apiClient) dispatch(ctx context.Context, req dispatchRequest) (*dispatchResponse, error) {
	var resp dispatchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type subscriberRequest struct {
	Name             string   `json:"name"`
	DestinationURL   string   `json:"destination_url"`
	SubscribedEvents []string `json:"subscribed_events"`
	ScopeID          string   `json:"scope_id,omitempty"`
}

type subscriberCreated struct {
	ID           string `json:"id"`
	SharedSecret string `json:"shared_secret"`
	APIKey       string `json:"api_key"`
}

func (c *apiClient) registerSubscriber(ctx context.Context, req subscriberRequest) (*subscriberCreated, error) {
	var resp subscriberCreated
	if err := c.do(ctx, http.MethodPost, "/v1/subscribers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type subscriberInfo struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	DestinationURL   string   `json:"destination_url"`
	SubscribedEvents []string `json:"subscribed_events"`
	Active           bool     `json:"active"`
	ScopeID          string   `json:"scope_id"`
}

func (c *apiClient) listSubscribers(ctx context.Context) ([]subscriberInfo, error) {
	var resp []subscriberInfo
	if err := c.do(ctx, http.MethodGet, "/v1/subscribers", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type attemptInfo struct {
	ID             string `json:"id"`
	SubscriberID   string `json:"subscriber_id"`
	EnvelopeID     string `json:"envelope_id"`
	EventType      string `json:"event_type"`
	DestinationURL string `json:"destination_url"`
	Status         string `json:"status"`
	AttemptCount   int    `json:"attempt_count"`
	ResponseStatus int    `json:"response_status"`
	LastError      string `json:"last_error"`
	CreatedAt      string `json:"created_at"`
}

func (c *apiClient) listAttempts(ctx context.Context) ([]attemptInfo, error) {
	var resp []attemptInfo
	if err := c.do(ctx, http.MethodGet, "/v1/attempts", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
