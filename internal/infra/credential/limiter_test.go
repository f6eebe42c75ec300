package credential

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestIntervalFor(t *testing.T) {
	tests := []struct {
		cpm  int
		want time.Duration
	}{
		{15, 4 * time.Second},
		{60, time.Second},
		{6000, 10 * time.Millisecond},
		{0, 0},
		{-3, 0},
	}
	for _, tt := range tests {
		if got := IntervalFor(tt.cpm); got != tt.want {
			t.Errorf("IntervalFor(%d) = %v, want %v", tt.cpm, got, tt.want)
		}
	}
}

func TestRateLimiter_ConcurrentSpacing(t *testing.T) {
	const interval = 15 * time.Millisecond
	l := NewIntervalLimiter(interval)

	var mu sync.Mutex
	var granted []time.Time
	l.onGrant = func(ts time.Time) {
		mu.Lock()
		granted = append(granted, ts)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(granted) != 10 {
		t.Fatalf("expected 10 grants, got %d", len(granted))
	}
	for k := 1; k < len(granted); k++ {
		if gap := granted[k].Sub(granted[k-1]); gap < interval {
			t.Errorf("grant %d came %v after grant %d, want >= %v", k, gap, k-1, interval)
		}
	}
}

func TestRateLimiter_FirstCallDoesNotWait(t *testing.T) {
	l := NewIntervalLimiter(time.Hour)

	start := time.Now()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Acquire waited %v", elapsed)
	}
	if l.LastWait() != 0 {
		t.Errorf("LastWait = %v, want 0", l.LastWait())
	}
}

func TestRateLimiter_CancelLeavesStateUntouched(t *testing.T) {
	l := NewIntervalLimiter(time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	l.mu.Lock()
	first := l.lastCallAt
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.lastCallAt.Equal(first) {
		t.Error("canceled Acquire must not move lastCallAt")
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	l := NewRateLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unlimited limiter took %v for 100 calls", elapsed)
	}
}
