package jobx_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/auralis/pkg/jobx"
	"github.com/Abraxas-365/auralis/pkg/jobx/jobxmem"
)

// newTestPool wires a queue, bus and pool with intervals short enough for
// tests. Backoff is shrunk so retries resolve in milliseconds.
func newTestPool(t *testing.T, concurrency int) (*jobxmem.MemoryQueue, *jobx.Bus, *jobx.Pool) {
	t.Helper()

	bus := jobx.NewBus()
	queue := jobxmem.New(bus)
	pool := jobx.NewPool(queue, bus,
		jobx.WithConcurrency(concurrency),
		jobx.WithPollInterval(5*time.Millisecond),
		jobx.WithBackoff(time.Millisecond, 20*time.Millisecond),
		jobx.WithShutdownTimeout(2*time.Second),
	)

	t.Cleanup(func() {
		pool.Stop()
		queue.Close()
	})
	return queue, bus, pool
}

// waitFor polls cond until it returns true or the timeout hits.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", msg)
		}
	}
}

// eventCounter tallies published events per kind.
type eventCounter struct {
	mu     sync.Mutex
	counts map[jobx.EventKind]int
	last   map[jobx.EventKind]jobx.Event
}

func newEventCounter(bus *jobx.Bus, kinds ...jobx.EventKind) *eventCounter {
	c := &eventCounter{
		counts: make(map[jobx.EventKind]int),
		last:   make(map[jobx.EventKind]jobx.Event),
	}
	for _, kind := range kinds {
		kind := kind
		bus.Subscribe(kind, func(ev jobx.Event) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.counts[kind]++
			c.last[kind] = ev
		})
	}
	return c
}

func (c *eventCounter) count(kind jobx.EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

func (c *eventCounter) lastEvent(kind jobx.EventKind) jobx.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[kind]
}

func TestAlwaysFailingJobRetriesOnceThenFailsPermanently(t *testing.T) {
	queue, bus, pool := newTestPool(t, 1)
	counter := newEventCounter(bus, jobx.EventJobRetry, jobx.EventJobFailedPermanently)

	var invocations atomic.Int64
	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		invocations.Add(1)
		return errors.New("provider unavailable")
	})

	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription", MaxAttempts: 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start()

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobFailedPermanently) == 1
	}, "permanent failure event")

	if got := counter.count(jobx.EventJobRetry); got != 1 {
		t.Errorf("job-retry published %d times, want 1", got)
	}
	if got := invocations.Load(); got != 2 {
		t.Errorf("handler invoked %d times, want 2", got)
	}

	failed := counter.lastEvent(jobx.EventJobFailedPermanently).(jobx.JobFailedPermanently)
	if failed.Attempts != 2 {
		t.Errorf("final attempts = %d, want 2", failed.Attempts)
	}
	if failed.Error == "" {
		t.Error("permanent failure carries no error message")
	}
}

func TestJobFailsTwiceThenSucceeds(t *testing.T) {
	queue, bus, pool := newTestPool(t, 1)
	counter := newEventCounter(bus, jobx.EventJobRetry, jobx.EventJobCompleted, jobx.EventJobFailedPermanently)

	var invocations atomic.Int64
	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		if invocations.Add(1) <= 2 {
			return errors.New("transient")
		}
		return nil
	})

	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription", MaxAttempts: 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start()

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobCompleted) == 1
	}, "completion event")

	if got := counter.count(jobx.EventJobRetry); got != 2 {
		t.Errorf("job-retry published %d times, want 2", got)
	}
	if got := counter.count(jobx.EventJobFailedPermanently); got != 0 {
		t.Errorf("job-failed-permanently published %d times, want 0", got)
	}
	if got := invocations.Load(); got != 3 {
		t.Errorf("handler invoked %d times, want 3", got)
	}
}

func TestAllJobsCompleteWithBoundedConcurrency(t *testing.T) {
	queue, bus, pool := newTestPool(t, 2)
	counter := newEventCounter(bus, jobx.EventJobCompleted)

	var concurrent, peak atomic.Int64
	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		n := concurrent.Add(1)
		defer concurrent.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	for range 5 {
		if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	pool.Start()

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobCompleted) == 5
	}, "all 5 completions")

	stats := pool.GetStats()
	if stats.QueueLength != 0 {
		t.Errorf("queueLength = %d, want 0", stats.QueueLength)
	}
	if peak.Load() > 2 {
		t.Errorf("observed %d concurrent handlers, concurrency limit is 2", peak.Load())
	}
}

func TestBackoffDelaysGrowPerRetry(t *testing.T) {
	queue, bus, pool := newTestPool(t, 1)

	var mu sync.Mutex
	var delays []time.Duration
	bus.Subscribe(jobx.EventJobRetry, func(ev jobx.Event) {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, ev.(jobx.JobRetry).Delay)
	})
	counter := newEventCounter(bus, jobx.EventJobFailedPermanently)

	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		return errors.New("always fails")
	})

	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription", MaxAttempts: 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start()

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobFailedPermanently) == 1
	}, "permanent failure after retries")

	mu.Lock()
	defer mu.Unlock()
	// Base 1ms: first retry waits 2ms, second 4ms; the third failure is
	// terminal and computes no delay.
	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("got %d retry delays (%v), want %d", len(delays), delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("retry %d delay = %v, want %v", i+1, delays[i], want[i])
		}
	}
}

func TestPoisonedJobDoesNotStarveHealthyJobs(t *testing.T) {
	queue, bus, pool := newTestPool(t, 2)
	counter := newEventCounter(bus, jobx.EventJobCompleted, jobx.EventJobFailedPermanently)

	pool.Register("poisoned", func(ctx context.Context, job *jobx.JobRecord) error {
		panic("handler crashed")
	})
	var healthyDone atomic.Int64
	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		healthyDone.Add(1)
		return nil
	})

	for range 3 {
		if _, err := queue.Enqueue(jobx.JobSpec{Type: "poisoned", MaxAttempts: 2}); err != nil {
			t.Fatalf("enqueue poisoned: %v", err)
		}
		if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
			t.Fatalf("enqueue healthy: %v", err)
		}
	}
	pool.Start()

	waitFor(t, 3*time.Second, func() bool {
		return counter.count(jobx.EventJobCompleted) == 3 &&
			counter.count(jobx.EventJobFailedPermanently) == 3
	}, "healthy completions alongside poisoned failures")

	if healthyDone.Load() != 3 {
		t.Errorf("healthy handler ran %d times, want 3", healthyDone.Load())
	}
}

func TestUnregisteredTypeFailsPermanentlyWithOneAttempt(t *testing.T) {
	queue, bus, pool := newTestPool(t, 1)
	counter := newEventCounter(bus, jobx.EventJobRetry, jobx.EventJobFailedPermanently)

	if _, err := queue.Enqueue(jobx.JobSpec{Type: "unknown"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start()

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobFailedPermanently) == 1
	}, "permanent failure for unregistered type")

	if got := counter.count(jobx.EventJobRetry); got != 0 {
		t.Errorf("job-retry published %d times, want 0", got)
	}

	failed := counter.lastEvent(jobx.EventJobFailedPermanently).(jobx.JobFailedPermanently)
	if failed.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (missing handler consumes one attempt)", failed.Attempts)
	}
	if failed.Type != "unknown" {
		t.Errorf("type = %s, want unknown", failed.Type)
	}
}

func TestStopLetsInFlightHandlerFinish(t *testing.T) {
	queue, bus, pool := newTestPool(t, 1)
	counter := newEventCounter(bus, jobx.EventJobCompleted)

	entered := make(chan struct{})
	release := make(chan struct{})
	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		close(entered)
		<-release
		return nil
	})

	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start()

	<-entered

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	// Stop must wait for the handler, and the outcome must still publish.
	close(release)
	<-stopped

	waitFor(t, time.Second, func() bool {
		return counter.count(jobx.EventJobCompleted) == 1
	}, "completion of the in-flight job")

	// A job enqueued after Stop must not be dequeued.
	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
		t.Fatalf("enqueue after stop: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := counter.count(jobx.EventJobCompleted); got != 1 {
		t.Errorf("completions after stop = %d, want still 1", got)
	}
	if size := queue.Size(); size != 1 {
		t.Errorf("queue size = %d, want the post-stop job still queued", size)
	}
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	queue, bus, pool := newTestPool(t, 2)
	counter := newEventCounter(bus, jobx.EventJobCompleted)

	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		return nil
	})

	pool.Start()
	pool.Start() // no-op

	waitFor(t, time.Second, func() bool {
		return pool.GetStats().Workers == 2
	}, "worker count after double start")

	pool.Stop()
	waitFor(t, time.Second, func() bool {
		s := pool.GetStats()
		return !s.IsRunning && s.Workers == 0
	}, "workers to exit after stop")

	pool.Start()
	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobCompleted) == 1
	}, "processing after restart")
}

func TestProcessingEventCarriesAttemptNumbers(t *testing.T) {
	queue, bus, pool := newTestPool(t, 1)

	var mu sync.Mutex
	var attempts []int
	bus.Subscribe(jobx.EventJobProcessing, func(ev jobx.Event) {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, ev.(jobx.JobProcessing).Attempt)
	})
	counter := newEventCounter(bus, jobx.EventJobCompleted)

	var n atomic.Int64
	pool.Register("transcription", func(ctx context.Context, job *jobx.JobRecord) error {
		if n.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	if _, err := queue.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start()

	waitFor(t, 2*time.Second, func() bool {
		return counter.count(jobx.EventJobCompleted) == 1
	}, "completion")

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("processing attempts = %v, want [1 2]", attempts)
	}
}
