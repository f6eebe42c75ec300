// Package credential manages API credentials for the classification backend.
//
// This package contains:
//   - RateLimiter: per-credential minimum call spacing
//   - Pool: fixed credential set with round-robin selection and call/error counters
package credential

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoCredentials is returned when a pool is built without any usable key.
var ErrNoCredentials = errors.New("no credentials configured")

// Handle is one credential together with its limiter.
type Handle struct {
	Index   int
	Key     string
	Limiter *RateLimiter

	calls  int
	errors int
}

// Suffix returns a short, non-secret identifier for the credential.
func (h *Handle) Suffix() string {
	return KeySuffix(h.Key)
}

// KeySuffix returns the last four characters of key.
func KeySuffix(key string) string {
	if len(key) <= 4 {
		return key
	}
	return key[len(key)-4:]
}

// CredentialStats is a point-in-time view of one credential's counters.
type CredentialStats struct {
	Index       int     `json:"index"`
	Suffix      string  `json:"suffix"`
	Calls       int     `json:"calls"`
	Errors      int     `json:"errors"`
	SuccessRate float64 `json:"success_rate"`
}

// Pool owns a fixed set of credentials and hands them out in strict
// round-robin order. The cursor always advances; throughput is enforced by
// each credential's own RateLimiter, never by skipping credentials.
type Pool struct {
	mu      sync.Mutex
	handles []*Handle
	next    int
}

// NewPool creates a pool with one limiter per key. Blank keys are dropped and
// duplicates collapsed, keeping first-seen order.
func NewPool(keys []string, callsPerMinute int) (*Pool, error) {
	seen := make(map[string]struct{}, len(keys))
	p := &Pool{}

	for _, raw := range keys {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		p.handles = append(p.handles, &Handle{
			Index:   len(p.handles),
			Key:     key,
			Limiter: NewRateLimiter(callsPerMinute),
		})
	}

	if len(p.handles) == 0 {
		return nil, ErrNoCredentials
	}
	return p, nil
}

// Size returns the number of credentials.
func (p *Pool) Size() int {
	return len(p.handles)
}

// Next returns the next credential in rotation.
func (p *Pool) Next() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.handles[p.next]
	p.next = (p.next + 1) % len(p.handles)
	return h
}

// RecordOutcome counts one call against h, and one error when success is false.
func (p *Pool) RecordOutcome(h *Handle, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h.calls++
	if !success {
		h.errors++
	}
}

// Snapshot returns the counters of every credential in pool order.
func (p *Pool) Snapshot() []CredentialStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]CredentialStats, len(p.handles))
	for i, h := range p.handles {
		s := CredentialStats{
			Index:  h.Index,
			Suffix: h.Suffix(),
			Calls:  h.calls,
			Errors: h.errors,
		}
		if h.calls > 0 {
			s.SuccessRate = float64(h.calls-h.errors) / float64(h.calls) * 100
		}
		stats[i] = s
	}
	return stats
}

// TotalCalls sums calls across all credentials.
func (p *Pool) TotalCalls() int {
	total := 0
	for _, s := range p.Snapshot() {
		total += s.Calls
	}
	return total
}
