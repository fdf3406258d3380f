package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// HeaderRetryAfter carries the server's requested wait on a 429.
	HeaderRetryAfter = "Retry-After"

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter = 60 * time.Second
)

// RateLimiter combines proactive throttling (token bucket) with the
// reactive backoff the server asks for in Retry-After.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst.
func NewRateLimiter(rps float64, burst int, sleep func(context.Context, time.Duration) error) *RateLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		sleep:   sleep,
	}
}

// Wait blocks until a request may be sent. It first honours any backoff set
// by RecordRateLimit, then waits for the token bucket. The backoff applies
// to every caller until it lapses.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	wait := time.Until(r.retryAt)
	r.mu.Unlock()

	if wait > 0 {
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimit defers the next request by retryAfter.
func (r *RateLimiter) RecordRateLimit(retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if at := time.Now().Add(retryAfter); at.After(r.retryAt) {
		r.retryAt = at
	}
}

// RetryAt returns when the recorded backoff ends (zero if none was ever
// recorded). A time in the past means the backoff has lapsed.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}

// ParseRetryAfter interprets a Retry-After header value given either as
// delay seconds or as an HTTP-date. A missing or unparseable value yields
// DefaultRetryAfter; a date in the past yields zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
