// Package upstream is the REST client shared by the market data, swap and LLM
// integrations: rate limited, retried with exponential backoff and guarded by a
// circuit breaker per provider.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"solana-trading-assistant/internal/observability"
)

// ErrCircuitOpen is returned while a provider's breaker is open.
var ErrCircuitOpen = errors.New("upstream circuit open")

// StatusError is a non-2xx response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Config configures a Client.
type Config struct {
	Provider   string
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client performs JSON requests against one provider.
type Client struct {
	provider   string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// New creates a Client. Zero fields take defaults: 10s timeout, 5 rps with burst 5,
// 3 retries starting at 500ms.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RPS)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		provider:   cfg.Provider,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    cfg.Headers,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker:    newBreaker(cfg.Provider),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        cfg.Logger.With().Str("component", "upstream").Str("provider", cfg.Provider).Logger(),
	}
}

// newBreaker trips after 3 consecutive failures, or more than 5% failures once
// 20 requests were seen in the 60s window.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	// Client errors are the caller's fault and do not count against the provider.
	st.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		var se *StatusError
		return errors.As(err, &se) && !se.Retryable()
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		observability.SetBreakerState(name, int(to))
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Provider returns the provider name used in logs and metrics.
func (c *Client) Provider() string { return c.provider }

// GetJSON issues GET path?query and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON issues POST path with a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do performs a request with retries. path may be absolute, in which case the
// base URL is ignored.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.provider, err)
		}
		payload = b
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		raw, err := c.attempt(ctx, method, target, payload)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", c.provider, err)
			}
			return nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		c.log.Debug().Err(err).Int("attempt", attempt+1).Str("url", path).Msg("retrying request")
	}

	return fmt.Errorf("%s: max retries exceeded: %w", c.provider, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", c.provider, err)
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, method, target, payload)
	})
	elapsed := time.Since(start).Seconds()

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.RecordAPICall(c.provider, "circuit_open", elapsed)
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.provider)
	case err != nil:
		status := "error"
		var se *StatusError
		if errors.As(err, &se) {
			status = strconv.Itoa(se.Code)
		}
		observability.RecordAPICall(c.provider, status, elapsed)
		return nil, err
	}

	observability.RecordAPICall(c.provider, "ok", elapsed)
	return res.([]byte), nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Provider: c.provider, Code: resp.StatusCode, Body: snippet}
	}

	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
