package classifier

import (
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry regimes selectable from config.
const (
	ModeBounded   = "bounded"
	ModeUnbounded = "unbounded"
)

// RetryPolicy controls how many external calls a record may consume and how
// long to wait between them. The delay before retry n (0-based) is
// min(BaseDelay*2^n, MaxDelay).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Unbounded marks the "retry until success" regime. MaxAttempts is then
	// only a safety ceiling and its exhaustion is reported as such.
	Unbounded bool
}

// BoundedPolicy gives up after three attempts with 1s, 2s backoff.
func BoundedPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    time.Hour,
	}
}

// UnboundedPolicy retries with 5s doubling backoff capped at five minutes,
// up to 500 attempts.
func UnboundedPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 500,
		BaseDelay:   5 * time.Second,
		MaxDelay:    5 * time.Minute,
		Unbounded:   true,
	}
}

// PolicyFor returns the preset for mode with non-zero overrides applied.
func PolicyFor(mode string, maxAttempts int, base, maxDelay time.Duration) (RetryPolicy, error) {
	var p RetryPolicy
	switch mode {
	case "", ModeUnbounded:
		p = UnboundedPolicy()
	case ModeBounded:
		p = BoundedPolicy()
	default:
		return RetryPolicy{}, fmt.Errorf("unknown retry mode %q", mode)
	}

	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if base > 0 {
		p.BaseDelay = base
	}
	if maxDelay > 0 {
		p.MaxDelay = maxDelay
	}
	return p, nil
}

// Delay returns the wait before retry n.
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// backoff builds a fresh go-retry backoff for one record.
func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}
