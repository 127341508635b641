// Package ratefeed talks to the channel manager that publishes per-category rates.
package ratefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"roomledger/internal/adapters/observability"
	"roomledger/internal/domain"
)

const (
	defaultRPS      = 5
	defaultAttempts = 4
	baseDelay       = 200 * time.Millisecond
	userAgent       = "roomledger-ratesync/1.0"
)

// Feed errors carry domain kinds so callers can tell misses from outages.
var (
	ErrNotFound     = fmt.Errorf("ratefeed: %w", domain.ErrNotFound)
	ErrUnauthorized = fmt.Errorf("ratefeed: %w", domain.ErrUnauthorized)
	ErrForbidden    = fmt.Errorf("ratefeed: forbidden: %w", domain.ErrUnauthorized)
)

// StatusError is an unexpected answer from the feed, after retries if it was retryable.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ratefeed: status %d", e.Code)
	}
	return fmt.Sprintf("ratefeed: status %d: %s", e.Code, e.Body)
}

type Client struct {
	base     string
	key      string
	hc       *http.Client
	limiter  *rate.Limiter
	attempts int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithMaxAttempts bounds tries per URL, including the first one.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func New(base, key string, rps int, opts ...Option) (*Client, error) {
	if key == "" {
		return nil, errors.New("ratefeed: API key is required")
	}
	if base == "" {
		return nil, errors.New("ratefeed: base URL is required")
	}
	if rps <= 0 {
		rps = defaultRPS
	}
	c := &Client{
		base:     strings.TrimRight(base, "/"),
		key:      key,
		hc:       &http.Client{Timeout: 20 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		attempts: defaultAttempts,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// GetCategoryRates returns the raw rate entries of a room category. The current path is
// tried first and the legacy room-types path only when the first answers 404.
func (c *Client) GetCategoryRates(ctx context.Context, categoryID int64) ([]map[string]any, error) {
	paths := []string{
		fmt.Sprintf("/categories/%d/rates", categoryID),
		fmt.Sprintf("/room-types/%d/rates", categoryID),
	}
	var err error
	for _, p := range paths {
		var body []byte
		body, err = c.get(ctx, c.base+p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return decodeRates(body)
	}
	return nil, err
}

// decodeRates accepts a bare array or one wrapped under rates, data or items.
func decodeRates(raw []byte) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var list []map[string]any
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("ratefeed: decode rates: %w", err)
		}
		return list, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("ratefeed: decode envelope: %w", err)
	}
	for _, k := range []string{"rates", "data", "items"} {
		if v, ok := envelope[k]; ok {
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, fmt.Errorf("ratefeed: decode %s: %w", k, err)
			}
			return list, nil
		}
	}
	return nil, errors.New("ratefeed: unexpected payload shape")
}

// get fetches url, retrying network errors, 429 and transient 5xx.
// Every attempt, retries included, takes a token from the limiter.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, wait, err := c.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		if wait < 0 {
			return nil, err
		}
		lastErr = err
		if i == c.attempts-1 {
			break
		}
		if wait == 0 {
			wait = backoff(i)
		}
		if !sleepCtx(ctx, wait) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// attempt makes one request. A negative wait means the error is final; zero means
// retry after the default backoff; positive is the server's Retry-After.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("X-API-Key", c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("ratefeed", "rates", 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		return nil, 0, err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("ratefeed", "rates", resp.StatusCode, time.Since(start))

	switch code := resp.StatusCode; {
	case code == http.StatusNoContent:
		return nil, 0, nil
	case code >= 200 && code < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, err
		}
		return body, 0, nil
	case code == http.StatusNotFound:
		return nil, -1, ErrNotFound
	case code == http.StatusUnauthorized:
		return nil, -1, ErrUnauthorized
	case code == http.StatusForbidden:
		return nil, -1, ErrForbidden
	case retryable(code):
		return nil, retryAfter(resp.Header.Get("Retry-After")), &StatusError{Code: code}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, -1, &StatusError{Code: code, Body: strings.TrimSpace(string(b))}
	}
}

func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter reads delta-seconds or an HTTP date; 0 when absent or already past.
func retryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from baseDelay per attempt with up to 50% jitter.
func backoff(i int) time.Duration {
	d := baseDelay << i
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}
