// Package api is the resilient client for the viewshot application API.
//
// Every call goes through one engine that attaches a fresh bearer token,
// throttles with a token bucket, retries transport failures with
// exponential backoff, honours Retry-After on 429 and re-authenticates once
// on a first-attempt 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// DefaultMaxRetries is the retry budget per call (four tries in total).
const DefaultMaxRetries = 3

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Config configures the client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	// MaxRetries defaults to DefaultMaxRetries when zero.
	MaxRetries int
	UserAgent  string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the shared transport. It is never closed by the client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPublisher sets where API notifications are sent.
func WithPublisher(p driven.NotificationPublisher) Option {
	return func(c *Client) { c.publisher = p }
}

// WithSleeper replaces the backoff sleep. Used by tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

type netState int

const (
	netUnknown netState = iota
	netOnline
	netOffline
)

// Client executes authenticated calls against the application API.
type Client struct {
	baseURL    string
	userAgent  string
	maxRetries int
	http       *http.Client
	tokens     driven.TokenProvider
	publisher  driven.NotificationPublisher
	limiter    *RateLimiter
	sleep      func(context.Context, time.Duration) error

	mu  sync.Mutex
	net netState
}

// NewClient creates a client that authorises calls through tokens.
func NewClient(cfg Config, tokens driven.TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		http:       http.DefaultClient,
		tokens:     tokens,
		sleep:      sleepContext,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, c.sleep)
	return c
}

// request describes one logical call. body is rebuilt for every attempt so
// streams and progress restart from the beginning.
type request struct {
	method        string
	path          string
	contentType   string
	body          func() (io.Reader, int64)
	authenticated bool
}

// SendAuthenticated performs an authenticated JSON call. body, when not
// nil, is encoded as JSON. The response is decoded into out; an empty
// response body leaves out untouched and is not an error.
func (c *Client) SendAuthenticated(ctx context.Context, method, path string, body, out any) error {
	req := request{method: method, path: path, authenticated: true}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.contentType = "application/json"
		req.body = func() (io.Reader, int64) {
			return bytes.NewReader(payload), int64(len(payload))
		}
	}

	respBody, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	return decodeJSON(respBody, out)
}

// execute runs the retry engine for one call and returns the 2xx body.
func (c *Client) execute(ctx context.Context, req request) ([]byte, error) {
	var lastErr error
	refreshed := false

	for attempt := 0; attempt <= c.maxRetries; {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := c.newRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		logger.Debug("api: %s %s (attempt %d)", req.method, req.path, attempt+1)
		resp, err := c.http.Do(httpReq)
		var body []byte
		if err == nil {
			body, err = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.setNetwork(netOffline)
			lastErr = err
			if attempt == c.maxRetries {
				break
			}
			backoff := time.Duration(1<<attempt) * time.Second
			logger.Debug("api: %s %s failed (%v), backing off %s", req.method, req.path, err, backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			attempt++
			continue
		}
		c.setNetwork(netOnline)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := ParseRetryAfter(resp.Header.Get(HeaderRetryAfter), time.Now())
			lastErr = &domain.RateLimitError{RetryAfter: wait, Attempts: attempt + 1}
			c.publish(domain.Notification{
				Kind:       domain.NotifyRateLimitReached,
				Path:       req.path,
				RetryAfter: wait,
				StatusCode: resp.StatusCode,
			})
			if attempt == c.maxRetries {
				return nil, lastErr
			}
			logger.Info("api: rate limited on %s, retrying in %s", req.path, wait)
			c.limiter.RecordRateLimit(wait)
			attempt++
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			if req.authenticated && attempt == 0 && !refreshed {
				refreshed = true
				if c.tokens.Refresh(ctx) {
					logger.Debug("api: token refreshed after 401, retrying %s", req.path)
					continue
				}
			}
			err := &domain.UnauthorizedError{Path: req.path, RefreshAttempted: refreshed}
			c.publishAPIError(req, resp.StatusCode, err.Error())
			return nil, err

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			err := &domain.HTTPError{
				StatusCode: resp.StatusCode,
				Body:       truncate(body, maxErrorBody),
				Method:     req.method,
				Path:       req.path,
			}
			c.publishAPIError(req, resp.StatusCode, err.Body)
			return nil, err

		default:
			return body, nil
		}
	}

	err := &domain.NetworkError{Attempts: c.maxRetries + 1, Err: lastErr}
	c.publishAPIError(req, 0, err.Error())
	return nil, err
}

// newRequest builds the HTTP request for one attempt.
func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	var body io.Reader
	var length int64
	if req.body != nil {
		body, length = req.body()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.ContentLength = length
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if req.authenticated {
		if c.tokens == nil {
			return nil, domain.ErrAuthRequired
		}
		tok, err := NewTokenSource(ctx, c.tokens).Token()
		if err != nil {
			if errors.Is(err, domain.ErrAuthRequired) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrAuthRequired, err)
		}
		if tok.AccessToken == "" {
			return nil, domain.ErrAuthRequired
		}
		tok.SetAuthHeader(httpReq)
	}
	return httpReq, nil
}

// setNetwork publishes NetworkStatusChanged when reachability flips.
func (c *Client) setNetwork(state netState) {
	c.mu.Lock()
	prev := c.net
	c.net = state
	c.mu.Unlock()

	if prev == state || (prev == netUnknown && state == netOnline) {
		return
	}
	c.publish(domain.Notification{
		Kind:   domain.NotifyNetworkStatusChanged,
		Online: state == netOnline,
	})
}

func (c *Client) publish(n domain.Notification) {
	if c.publisher == nil {
		return
	}
	n.At = time.Now().UTC()
	c.publisher.Publish(n)
}

func (c *Client) publishAPIError(req request, status int, message string) {
	c.publish(domain.Notification{
		Kind:       domain.NotifyAPIError,
		Path:       req.path,
		StatusCode: status,
		Message:    message,
	})
}

// decodeJSON decodes body into out. Empty bodies are the null result.
func decodeJSON(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
