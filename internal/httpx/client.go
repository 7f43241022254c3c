// Package httpx is a small JSON-over-HTTP client shared by the market and swap integrations.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
)

const maxBodyBytes = 1 << 20

// StatusError is returned for non-2xx responses that are not transient.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client performs single-attempt JSON requests. Retries are the caller's decision.
type Client struct {
	httpClient *http.Client
	service    string
	headers    map[string]string
}

// New creates a client for service with a per-request timeout.
func New(service string, timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		service:    service,
		headers:    headers,
	}
}

// GetJSON issues a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, nil, out)
}

// PostJSON encodes body, issues a POST and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, url, payload, headers, out)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewTransientError(c.service, err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewTransientError(c.service, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return apperrors.NewTransientError(c.service, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(buf))})
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(buf))}
	}

	if out == nil || len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.service, err)
	}

	return nil
}
