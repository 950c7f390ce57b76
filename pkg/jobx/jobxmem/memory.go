// Package jobxmem provides the in-memory queue backend: a mutex-guarded FIFO
// with timer-based delayed insertion. Queue state does not survive a restart.
package jobxmem

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Abraxas-365/auralis/pkg/jobx"
)

// MemoryQueue holds pending job records in arrival order. Delayed records sit
// outside the ready list until their timer fires, then join at the tail.
type MemoryQueue struct {
	mu     sync.Mutex
	ready  []*jobx.JobRecord
	timers map[string]*time.Timer
	bus    *jobx.Bus
	closed bool
}

// New creates an empty queue publishing job-added events on bus.
func New(bus *jobx.Bus) *MemoryQueue {
	return &MemoryQueue{
		timers: make(map[string]*time.Timer),
		bus:    bus,
	}
}

// Enqueue builds a record from spec and makes it available for dequeue. With
// a positive spec.Delay the record becomes eligible only after the delay
// elapses; the id is returned immediately either way.
func (q *MemoryQueue) Enqueue(spec jobx.JobSpec) (string, error) {
	if spec.Type == "" {
		return "", jobx.NewError(jobx.ErrInvalidJob)
	}

	rec := &jobx.JobRecord{
		ID:          spec.ID,
		Type:        spec.Type,
		Payload:     spec.Payload,
		Status:      jobx.JobStatusPending,
		MaxAttempts: spec.MaxAttempts,
		CreatedAt:   time.Now(),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MaxAttempts <= 0 {
		rec.MaxAttempts = 3
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", jobx.NewError(jobx.ErrQueueClosed)
	}
	if spec.Delay > 0 {
		q.scheduleLocked(rec, spec.Delay)
	} else {
		q.ready = append(q.ready, rec)
	}
	q.mu.Unlock()

	q.bus.Publish(jobx.JobAdded{JobID: rec.ID, Type: rec.Type})
	return rec.ID, nil
}

// Requeue puts a previously dequeued record back after delay. The record
// keeps its id, attempts and lastError; it re-enters the FIFO at the tail
// once eligible.
func (q *MemoryQueue) Requeue(rec *jobx.JobRecord, delay time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return jobx.NewError(jobx.ErrQueueClosed)
	}
	if delay > 0 {
		q.scheduleLocked(rec, delay)
	} else {
		rec.Status = jobx.JobStatusPending
		q.ready = append(q.ready, rec)
	}
	q.mu.Unlock()

	q.bus.Publish(jobx.JobAdded{JobID: rec.ID, Type: rec.Type})
	return nil
}

// Dequeue removes and returns the oldest eligible record, or nil when none
// is eligible. The lock guarantees each record goes to exactly one caller.
func (q *MemoryQueue) Dequeue() (*jobx.JobRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return nil, nil
	}
	rec := q.ready[0]
	q.ready = q.ready[1:]
	return rec, nil
}

// Size counts records currently eligible plus those waiting out a delay.
func (q *MemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.timers)
}

// Close cancels all pending delay timers and rejects further enqueues.
// Intended for teardown; records already eligible remain dequeueable.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

// scheduleLocked arms the delayed-insertion timer. Caller holds q.mu.
func (q *MemoryQueue) scheduleLocked(rec *jobx.JobRecord, delay time.Duration) {
	q.timers[rec.ID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, armed := q.timers[rec.ID]; !armed {
			return
		}
		delete(q.timers, rec.ID)
		rec.Status = jobx.JobStatusPending
		q.ready = append(q.ready, rec)
	})
}
