package jobx

import "time"

// WorkerOptions configures the worker pool.
type WorkerOptions struct {
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	BackoffBase     time.Duration
	BackoffCap      time.Duration
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Concurrency:     3,
		PollInterval:    5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		BackoffBase:     DefaultBackoffBase,
		BackoffCap:      DefaultBackoffCap,
	}
}

// WorkerOption is a functional option for configuring the pool.
type WorkerOption func(*WorkerOptions)

// WithConcurrency sets the number of worker loops.
func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithPollInterval sets how long an idle loop waits before checking the
// queue again.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithShutdownTimeout sets the maximum time Stop waits for in-flight
// handlers to finish.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// WithBackoff overrides the retry backoff base and cap.
func WithBackoff(base, cap time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if base > 0 {
			o.BackoffBase = base
		}
		if cap > 0 {
			o.BackoffCap = cap
		}
	}
}
