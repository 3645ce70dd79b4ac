package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter shared by every concurrent
// pipeline controller. Exhausting the budget delays callers rather than
// failing them, up to a maximum queue wait after which acquisition fails
// with a quota error.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	windowSeconds     float64
	maxWait           time.Duration

	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter with the given per-minute budget and
// maximum queue wait. Non-positive arguments fall back to defaults.
func NewRateLimiter(requestsPerMinute int, maxWait time.Duration) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		windowSeconds:     60.0,
		maxWait:           maxWait,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Acquire blocks until a token is available, the context is cancelled, or
// the maximum queue wait elapses (quota error).
func (r *RateLimiter) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(r.maxWait)
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}
		tokensNeeded := 1.0 - r.tokens
		refillRate := float64(r.requestsPerMinute) / r.windowSeconds
		wait := time.Duration(tokensNeeded / refillRate * float64(time.Second))
		r.mu.Unlock()

		if time.Now().Add(wait).After(deadline) {
			return NewError(KindQuotaExceeded, "ratelimiter",
				fmt.Errorf("queue wait would exceed %s", r.maxWait))
		}

		select {
		case <-ctx.Done():
			return NewError(KindTransport, "ratelimiter", ctx.Err())
		case <-time.After(wait):
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// Status returns a snapshot of the limiter.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
	}
}

// refill adds tokens based on elapsed time. Caller holds the lock.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * float64(r.requestsPerMinute) / r.windowSeconds
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}

// Throttled wraps a client with a shared rate limiter, applying
// backpressure before each completion call.
type Throttled struct {
	inner   Client
	limiter *RateLimiter
}

// NewThrottled wraps client with limiter.
func NewThrottled(client Client, limiter *RateLimiter) *Throttled {
	return &Throttled{inner: client, limiter: limiter}
}

// Complete acquires a rate-limit token, then delegates.
func (t *Throttled) Complete(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	return t.inner.Complete(ctx, prompt)
}

// Name returns the wrapped client's identifier.
func (t *Throttled) Name() string { return t.inner.Name() }

var _ Client = (*Throttled)(nil)
