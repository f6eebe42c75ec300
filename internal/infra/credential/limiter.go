package credential

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a fixed minimum spacing between calls made under one
// credential. The check, the wait and the timestamp update happen under a
// single lock, so concurrent callers are serialized and never both act on a
// stale lastCallAt.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCallAt  time.Time
	lastWait    time.Duration

	onGrant func(time.Time) // called under mu with each granted timestamp
}

// NewRateLimiter creates a limiter allowing callsPerMinute calls per minute.
// A non-positive value disables limiting.
func NewRateLimiter(callsPerMinute int) *RateLimiter {
	return NewIntervalLimiter(IntervalFor(callsPerMinute))
}

// NewIntervalLimiter creates a limiter with an explicit minimum spacing.
func NewIntervalLimiter(minInterval time.Duration) *RateLimiter {
	if minInterval < 0 {
		minInterval = 0
	}
	return &RateLimiter{minInterval: minInterval}
}

// IntervalFor converts a calls-per-minute ceiling into a call spacing.
func IntervalFor(callsPerMinute int) time.Duration {
	if callsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(callsPerMinute)
}

// Acquire blocks until minInterval has elapsed since the last permitted call,
// then records now as the new last call. It returns ctx.Err() if the context
// ends first, leaving the limiter state untouched.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var waited time.Duration
	if !l.lastCallAt.IsZero() {
		if remaining := l.minInterval - time.Since(l.lastCallAt); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			waited = remaining
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.lastCallAt = time.Now()
	l.lastWait = waited
	if l.onGrant != nil {
		l.onGrant(l.lastCallAt)
	}
	return nil
}

// MinInterval returns the configured spacing.
func (l *RateLimiter) MinInterval() time.Duration {
	return l.minInterval
}

// LastWait returns how long the most recent successful Acquire waited.
func (l *RateLimiter) LastWait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastWait
}
