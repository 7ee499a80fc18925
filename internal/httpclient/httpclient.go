// Package httpclient is the shared HTTP plumbing for collaborator backends:
// JSON POST with timeout, rate limiting, and bounded retry. The chat client
// in the llm package carries its own variant with typed errors; the image,
// caption, and embedding backends all go through here.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vispera/promptloop/utils"
)

// Options holds the behavior knobs shared by collaborator HTTP clients.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	RequestsPerMin int
}

// Client posts JSON bodies with bounded retry and rate limiting.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     utils.Logger
}

func New(opts Options, logger utils.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 60
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMin)/60.0), 1),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

// PostJSON sends body to url and returns the response body. Non-2xx status
// codes and transport failures are retried up to MaxRetries times.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		respBody, err := c.attempt(ctx, url, headers, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		c.logger.Warn("Request attempt failed", "url", url, "error", err, "attempt", attempt+1)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status code %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
