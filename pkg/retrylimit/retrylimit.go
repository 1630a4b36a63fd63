// Package retrylimit paces and retries calls to remote collaborators
// (wallet RPC, market feed, social feed, LLM providers). The rate adapts:
// it creeps up while calls succeed and halves when the remote side pushes
// back, so a degraded collaborator is never hammered.
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// StatusError carries an HTTP status code alongside the error text. Clients
// return it so the retry loop can distinguish throttling from hard failures.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("http %d: %s", e.Code, e.Msg) }

// Permanent wraps errors that must not be retried (bad request, auth).
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// AdaptiveLimiter adjusts a token-bucket rate based on call outcomes.
// Thread-safe.
type AdaptiveLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	min, max rate.Limit
	stepUp   rate.Limit
	stepDown float64
	lastErr  time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, bounded by [min, max]. stepUp is added per success streak,
// stepDown multiplies the rate on pushback (e.g. 0.5 halves it).
func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < min {
		initial = min
	}
	burst := int(initial)
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burst),
		min:      min,
		max:      max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a slot is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

// Success nudges the rate up, unless a failure happened in the last 10s.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastErr) > 10*time.Second {
		a.set(a.limiter.Limit() + a.stepUp)
	}
}

// Throttled drops the rate after pushback from the remote side.
func (a *AdaptiveLimiter) Throttled() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = time.Now()
	a.set(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// Rate returns the current requests per second.
func (a *AdaptiveLimiter) Rate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	if l > a.max {
		l = a.max
	}
	if l < a.min {
		l = a.min
	}
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		b := int(l)
		if b < 1 {
			b = 1
		}
		a.limiter.SetBurst(b)
	}
}

// Config controls the retry loop.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig: 3 attempts, 500ms initial delay doubling up to 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Do runs fn with limiter pacing and exponential backoff. Stops on success,
// Permanent error, context cancellation, or attempt exhaustion.
func Do(ctx context.Context, lim *AdaptiveLimiter, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if lim != nil && shouldThrottle(err) {
			lim.Throttled()
		}

		// jittered backoff, 0-25% on top
		next := delay
		if next > 0 {
			next += time.Duration(rand.Int63n(int64(delay/4) + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// shouldThrottle reports whether err indicates the remote side is overloaded.
func shouldThrottle(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || (se.Code >= 500 && se.Code < 600)
	}
	return false
}
