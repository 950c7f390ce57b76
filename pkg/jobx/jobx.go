// Package jobx implements the in-process asynchronous job subsystem: a FIFO
// dispatch queue with delayed insertion, a polling worker pool with capped
// exponential retry backoff, and a typed event bus announcing lifecycle
// transitions.
package jobx

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Abraxas-365/auralis/pkg/logx"
)

// HandlerFunc processes a job. Return nil on success, an error to trigger
// retry or permanent failure once attempts are exhausted.
type HandlerFunc func(ctx context.Context, job *JobRecord) error

// Queue is the backing store the pool pulls work from.
type Queue interface {
	// Enqueue constructs a JobRecord from spec and makes it available for
	// dequeue, after spec.Delay if one is set. Returns the job id immediately.
	Enqueue(spec JobSpec) (string, error)

	// Requeue puts a previously dequeued record back after delay elapses.
	// Used by the pool's retry path; attempts are already incremented.
	Requeue(rec *JobRecord, delay time.Duration) error

	// Dequeue removes and returns the oldest eligible record, or nil when
	// none is eligible. Each record is handed to exactly one caller.
	Dequeue() (*JobRecord, error)

	// Size counts records eligible or waiting out a delay.
	Size() int
}

// Stats is a point-in-time snapshot of the pool for health checks.
type Stats struct {
	QueueLength int  `json:"queue_length"`
	Processing  int  `json:"processing"`
	IsRunning   bool `json:"is_running"`
	Concurrency int  `json:"concurrency"`
	Workers     int  `json:"workers"`
}

// Pool drives a fixed number of concurrent worker loops against a Queue.
type Pool struct {
	queue Queue
	bus   *Bus
	opts  WorkerOptions

	handlers   map[string]HandlerFunc
	handlersMu sync.RWMutex

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	wg      *sync.WaitGroup

	processing atomic.Int64
	workers    atomic.Int64
}

// NewPool creates a worker pool reading from queue and publishing lifecycle
// events on bus.
func NewPool(queue Queue, bus *Bus, options ...WorkerOption) *Pool {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Pool{
		queue:    queue,
		bus:      bus,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a job type. Jobs of an unregistered type fail
// permanently on dequeue.
func (p *Pool) Register(jobType string, handler HandlerFunc) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[jobType] = handler
}

// Events returns the bus the pool publishes on, for subscriber wiring.
func (p *Pool) Events() *Bus {
	return p.bus
}

// Start spins up the worker loops and returns immediately. Calling Start on
// a running pool is a logged no-op. Start after Stop performs a clean restart.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		logx.Warn("jobx: pool already running, ignoring start")
		return
	}

	p.running = true
	p.quit = make(chan struct{})
	p.wg = &sync.WaitGroup{}

	logx.Infof("jobx: starting %d workers (poll interval %s)", p.opts.Concurrency, p.opts.PollInterval)

	for i := range p.opts.Concurrency {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id, p.quit)
		}(i)
	}
}

// Stop signals all loops to exit after their current iteration. In-flight
// handlers finish and their outcomes are still published; no new dequeues
// happen afterwards. Blocks until the loops exit or ShutdownTimeout elapses.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.quit)
	wg := p.wg
	p.mu.Unlock()

	logx.Info("jobx: shutting down workers...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("jobx: all workers stopped")
	case <-time.After(p.opts.ShutdownTimeout):
		logx.Warn("jobx: shutdown timed out, some jobs may not have completed")
	}
}

// GetStats reports the pool's current state.
func (p *Pool) GetStats() Stats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return Stats{
		QueueLength: p.queue.Size(),
		Processing:  int(p.processing.Load()),
		IsRunning:   running,
		Concurrency: p.opts.Concurrency,
		Workers:     int(p.workers.Load()),
	}
}

func (p *Pool) workerLoop(id int, quit chan struct{}) {
	p.workers.Add(1)
	defer p.workers.Add(-1)

	for {
		select {
		case <-quit:
			return
		default:
		}

		rec, err := p.queue.Dequeue()
		if err != nil {
			logx.WithError(err).Warnf("jobx: worker %d dequeue error", id)
			p.sleep(quit)
			continue
		}
		if rec == nil {
			p.sleep(quit)
			continue
		}

		p.processJob(id, rec)
	}
}

// sleep waits out the poll interval, returning early on shutdown.
func (p *Pool) sleep(quit chan struct{}) {
	t := time.NewTimer(p.opts.PollInterval)
	defer t.Stop()
	select {
	case <-quit:
	case <-t.C:
	}
}

func (p *Pool) processJob(workerID int, rec *JobRecord) {
	p.processing.Add(1)
	defer p.processing.Add(-1)

	rec.Status = JobStatusProcessing
	p.bus.Publish(JobProcessing{
		WorkerID:    workerID,
		JobID:       rec.ID,
		Attempt:     rec.Attempts + 1,
		MaxAttempts: rec.MaxAttempts,
	})

	p.handlersMu.RLock()
	handler, ok := p.handlers[rec.Type]
	p.handlersMu.RUnlock()

	if !ok {
		// Consumes one attempt; there is no point retrying a job nobody
		// can process.
		rec.Attempts++
		rec.LastError = jobxErrors.New(ErrNoHandler).Error()
		p.failPermanently(rec)
		return
	}

	if err := p.runHandler(handler, rec); err != nil {
		p.handleFailure(rec, err)
		return
	}

	rec.Status = JobStatusCompleted
	p.bus.Publish(JobCompleted{JobID: rec.ID})
}

// runHandler invokes the handler, converting a panic into an ordinary error
// so it flows through the retry logic instead of killing the loop.
func (p *Pool) runHandler(handler HandlerFunc, rec *JobRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = jobxErrors.New(ErrHandlerPanic).WithDetail("panic", r)
		}
	}()
	return handler(context.Background(), rec)
}

func (p *Pool) handleFailure(rec *JobRecord, err error) {
	rec.Attempts++
	rec.LastError = err.Error()

	logx.WithError(err).Warnf("jobx: job %s (type=%s) failed, attempt %d/%d",
		rec.ID, rec.Type, rec.Attempts, rec.MaxAttempts)

	if rec.Attempts >= rec.MaxAttempts {
		p.failPermanently(rec)
		return
	}

	delay := RetryDelay(p.opts.BackoffBase, p.opts.BackoffCap, rec.Attempts)
	rec.Status = JobStatusRetrying

	if requeueErr := p.queue.Requeue(rec, delay); requeueErr != nil {
		logx.WithError(requeueErr).Errorf("jobx: failed to requeue job %s", rec.ID)
		p.failPermanently(rec)
		return
	}

	p.bus.Publish(JobRetry{
		JobID:       rec.ID,
		Error:       rec.LastError,
		NextAttempt: rec.Attempts + 1,
		Delay:       delay,
	})
}

func (p *Pool) failPermanently(rec *JobRecord) {
	rec.Status = JobStatusFailed
	p.bus.Publish(JobFailedPermanently{
		JobID:    rec.ID,
		Type:     rec.Type,
		Attempts: rec.Attempts,
		Error:    rec.LastError,
	})
}
