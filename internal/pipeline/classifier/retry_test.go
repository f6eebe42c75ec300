package classifier

import (
	"testing"
	"time"
)

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		n      int
		want   time.Duration
	}{
		{"bounded first", BoundedPolicy(), 0, time.Second},
		{"bounded second", BoundedPolicy(), 1, 2 * time.Second},
		{"unbounded first", UnboundedPolicy(), 0, 5 * time.Second},
		{"unbounded grows", UnboundedPolicy(), 3, 40 * time.Second},
		{"unbounded capped", UnboundedPolicy(), 6, 5 * time.Minute},
		{"unbounded far out", UnboundedPolicy(), 400, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.n); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_BackoffSequence(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond}
	b := p.backoff()

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		got, stop := b.Next()
		if stop {
			t.Fatalf("backoff stopped early at retry %d", i)
		}
		if got != w {
			t.Errorf("retry %d delay = %v, want %v", i, got, w)
		}
	}
	if _, stop := b.Next(); !stop {
		t.Error("backoff should stop after MaxAttempts-1 retries")
	}
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("", 0, 0, 0)
	if err != nil || !p.Unbounded || p.MaxAttempts != 500 {
		t.Errorf("default policy = %+v, %v", p, err)
	}

	p, err = PolicyFor(ModeBounded, 5, 2*time.Second, 0)
	if err != nil || p.Unbounded || p.MaxAttempts != 5 || p.BaseDelay != 2*time.Second {
		t.Errorf("bounded override = %+v, %v", p, err)
	}

	if _, err := PolicyFor("forever", 0, 0, 0); err == nil {
		t.Error("expected error for unknown mode")
	}
}
