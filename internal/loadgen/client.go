package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client is a small JSON client for the merit API.
type Client struct {
	base    string
	http    *http.Client
	retries uint64
}

// NewClient creates a client rooted at base.
func NewClient(base string, timeout time.Duration, retries uint64) *Client {
	return &Client{base: base, http: &http.Client{Timeout: timeout}, retries: retries}
}

// do sends one request and decodes a 2xx body into out. Transient 503
// responses are retried with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	status := 0
	b := retry.WithMaxRetries(c.retries, retry.WithJitterPercent(20, retry.NewExponential(20*time.Millisecond)))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusServiceUnavailable && resp.Header.Get("Retry-After") != "":
			return retry.RetryableError(fmt.Errorf("%w: %d %s", errRetryable, status, bytes.TrimSpace(data)))
		case status >= http.StatusBadRequest:
			return fmt.Errorf("%s %s: %d %s", method, path, status, bytes.TrimSpace(data))
		}
		if out != nil && len(data) > 0 {
			return json.Unmarshal(data, out)
		}
		return nil
	})
	return status, err
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	return nil
}

// Award posts to /v1/awards.
func (c *Client) Award(ctx context.Context, req any, out any) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/awards", req, out)
	return err
}

// Points fetches a user's active-season points.
func (c *Client) Points(ctx context.Context, userID string, out any) error {
	_, err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/points", nil, out)
	return err
}
