package jobx

import "time"

const (
	// DefaultBackoffBase is the delay before the first retry.
	DefaultBackoffBase = time.Second

	// DefaultBackoffCap bounds the delay regardless of attempt count.
	DefaultBackoffCap = 30 * time.Second
)

// RetryDelay computes the capped exponential backoff for a job that has
// failed `attempts` times: min(base * 2^attempts, cap).
func RetryDelay(base, cap time.Duration, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := base
	for range attempts {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
