package freshservice

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// ErrRateLimitExhausted is returned when the API keeps answering 429 after every permitted wait.
var ErrRateLimitExhausted = errors.New("freshservice rate limit: retries exhausted")

// errRateLimited marks a 429 response as retryable inside the backoff loop.
var errRateLimited = errors.New("rate limited")

// Backoff is the wait schedule used when the API answers 429 Too Many Requests.
type Backoff struct {
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	MaxAttempts int // consecutive waits allowed for one page.
}

// DefaultBackoff waits one minute, doubling up to ten minutes, five times.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialWait: 60 * time.Second,
		MaxWait:     10 * time.Minute,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// policy builds the retry policy for one page.
// The schedule has no jitter and no elapsed time limit; only MaxAttempts ends it.
// retryAfter is read on every wait so the caller can feed in the latest Retry-After header.
func (b Backoff) policy(ctx context.Context, retryAfter *time.Duration) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.InitialWait
	exp.MaxInterval = b.MaxWait
	exp.Multiplier = b.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	attempts := b.MaxAttempts
	if attempts < 0 {
		attempts = 0
	}
	return backoff.WithContext(&retryAfterBackOff{
		BackOff:    backoff.WithMaxRetries(exp, uint64(attempts)),
		retryAfter: retryAfter,
		maxWait:    b.MaxWait,
	}, ctx)
}

// retryAfterBackOff lets a larger Retry-After from the server win over the computed wait, up to maxWait.
type retryAfterBackOff struct {
	backoff.BackOff
	retryAfter *time.Duration
	maxWait    time.Duration
}

func (r *retryAfterBackOff) NextBackOff() time.Duration {
	next := r.BackOff.NextBackOff()
	if next == backoff.Stop || r.retryAfter == nil {
		return next
	}
	if *r.retryAfter > next {
		next = *r.retryAfter
		if r.maxWait > 0 && next > r.maxWait {
			next = r.maxWait
		}
	}
	return next
}

// parseRetryAfter reads the Retry-After header as either delay seconds or an HTTP date.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
