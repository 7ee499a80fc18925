// Package llm provides the language model adapter for the refinement
// pipeline: a retrying, rate-limited client over a chat-completion provider
// plus the two derived operations the controller needs, similarity judgment
// and prompt rewriting.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vispera/promptloop/providers"
	"github.com/vispera/promptloop/utils"
)

// Client wraps a chat-completion provider with timeout, bounded retry, and
// rate limiting. The retry policy applies to transport and API failures;
// context cancellation ends the retry loop immediately.
type Client struct {
	Provider   providers.Provider
	MaxRetries int
	RetryDelay time.Duration

	client  *http.Client
	limiter *rate.Limiter
	logger  utils.Logger
}

// ClientOptions holds the HTTP behavior knobs shared by collaborator clients.
type ClientOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	RequestsPerMin int
}

func NewClient(provider providers.Provider, opts ClientOptions, logger utils.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 60
	}
	return &Client{
		Provider:   provider,
		MaxRetries: opts.MaxRetries,
		RetryDelay: opts.RetryDelay,
		client:     &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMin)/60.0), 1),
		logger:     logger,
	}
}

// Chat sends the messages to the backend and returns the parsed response.
func (c *Client) Chat(ctx context.Context, messages []providers.Message) (*providers.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		c.logger.Debug("Chat attempt", "provider", c.Provider.Name(), "attempt", attempt+1)

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewLLMError(ErrorTypeRateLimit, "rate limiter wait aborted", err)
		}

		resp, err := c.attemptChat(ctx, messages)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		c.logger.Warn("Chat attempt failed", "error", err, "attempt", attempt+1)

		if attempt < c.MaxRetries {
			if err := c.wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.MaxRetries+1, lastErr)
}

func (c *Client) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.RetryDelay):
		return nil
	}
}

func (c *Client) attemptChat(ctx context.Context, messages []providers.Message) (*providers.Response, error) {
	reqBody, err := c.Provider.PrepareRequest(messages, nil)
	if err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "failed to prepare request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Provider.Endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "failed to create request", err)
	}

	for k, v := range c.Provider.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "failed to send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrorTypeResponse, "failed to read response body", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewLLMError(ErrorTypeRateLimit, "rate limited by backend", nil)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error", "provider", c.Provider.Name(), "status", resp.StatusCode, "body", string(body))
		return nil, NewLLMError(ErrorTypeAPI, fmt.Sprintf("API error: status code %d", resp.StatusCode), nil)
	}

	result, err := c.Provider.ParseResponse(body)
	if err != nil {
		return nil, NewLLMError(ErrorTypeResponse, "failed to parse response", err)
	}

	return result, nil
}
