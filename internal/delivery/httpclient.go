package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent       = "dispatchd/1.0"
	headerSignature = "X-Dispatch-Signature"
	headerEvent     = "X-Dispatch-Event"
	headerDelivery  = "X-Dispatch-Delivery"

	// responseBodyLimit caps how much of a subscriber response is recorded
	// on the delivery attempt.
	responseBodyLimit = 4096
)

type httpResponse struct {
	StatusCode int
	Body       string
}

type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: timeout},
	}
}

// post sends the signed wire bytes to a destination. The signature header
// carries the HMAC digest of exactly the bytes in payload.
func (c *httpClient) post(ctx context.Context, url string, payload []byte, sig, eventType, deliveryID string) (*httpResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerSignature, sig)
	req.Header.Set(headerEvent, eventType)
	req.Header.Set(headerDelivery, deliveryID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return &httpResponse{StatusCode: resp.StatusCode}, nil
	}

	return &httpResponse{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}
