package jobx

import (
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		cap      time.Duration
		attempts int
		want     time.Duration
	}{
		{"first retry", time.Second, 30 * time.Second, 1, 2 * time.Second},
		{"second retry", time.Second, 30 * time.Second, 2, 4 * time.Second},
		{"third retry", time.Second, 30 * time.Second, 3, 8 * time.Second},
		{"hits cap", time.Second, 30 * time.Second, 5, 30 * time.Second},
		{"far past cap", time.Second, 30 * time.Second, 20, 30 * time.Second},
		{"zero attempts", time.Second, 30 * time.Second, 0, time.Second},
		{"negative attempts clamped", time.Second, 30 * time.Second, -3, time.Second},
		{"custom base and cap", 500 * time.Millisecond, 2 * time.Second, 3, 2 * time.Second},
		{"base above cap", time.Minute, 30 * time.Second, 0, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RetryDelay(tt.base, tt.cap, tt.attempts)
			if got != tt.want {
				t.Errorf("RetryDelay(%v, %v, %d) = %v, want %v",
					tt.base, tt.cap, tt.attempts, got, tt.want)
			}
		})
	}
}

func TestRetryDelayDoesNotOverflow(t *testing.T) {
	// Doubling must short-circuit at the cap instead of wrapping around.
	got := RetryDelay(time.Second, 30*time.Second, 200)
	if got != 30*time.Second {
		t.Errorf("RetryDelay with huge attempt count = %v, want cap", got)
	}
}
