package jobx

import (
	"sync"
	"time"

	"github.com/Abraxas-365/auralis/pkg/logx"
)

// EventKind identifies a job lifecycle transition.
type EventKind string

const (
	EventJobAdded             EventKind = "job-added"
	EventJobProcessing        EventKind = "job-processing"
	EventJobCompleted         EventKind = "job-completed"
	EventJobRetry             EventKind = "job-retry"
	EventJobFailedPermanently EventKind = "job-failed-permanently"
)

// Event is a job lifecycle notification published on the Bus.
type Event interface {
	Kind() EventKind
}

// JobAdded is published by the queue on every enqueue, retries included.
type JobAdded struct {
	JobID string
	Type  string
}

func (JobAdded) Kind() EventKind { return EventJobAdded }

// JobProcessing is published when a worker picks up a job.
type JobProcessing struct {
	WorkerID    int
	JobID       string
	Attempt     int
	MaxAttempts int
}

func (JobProcessing) Kind() EventKind { return EventJobProcessing }

// JobCompleted is published when a handler finishes without error.
type JobCompleted struct {
	JobID string
}

func (JobCompleted) Kind() EventKind { return EventJobCompleted }

// JobRetry is published when a failed job is re-enqueued with a backoff delay.
type JobRetry struct {
	JobID       string
	Error       string
	NextAttempt int
	Delay       time.Duration
}

func (JobRetry) Kind() EventKind { return EventJobRetry }

// JobFailedPermanently is published when a job exhausts its attempts.
// Terminal; the job is never re-enqueued after this.
type JobFailedPermanently struct {
	JobID    string
	Type     string
	Attempts int
	Error    string
}

func (JobFailedPermanently) Kind() EventKind { return EventJobFailedPermanently }

// Listener receives events of the kind it subscribed to.
type Listener func(Event)

// Bus is a typed in-process publish/subscribe channel for job lifecycle
// events. A panicking listener never affects the publisher or other listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[EventKind][]Listener)}
}

// Subscribe registers fn for events of the given kind. Multiple listeners
// may subscribe to the same kind; each receives every published event.
func (b *Bus) Subscribe(kind EventKind, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], fn)
}

// Publish delivers ev to every listener subscribed to its kind, synchronously
// and in subscription order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.listeners[ev.Kind()]
	b.mu.RUnlock()

	for _, fn := range subs {
		b.safeCall(ev, fn)
	}
}

func (b *Bus) safeCall(ev Event, fn Listener) {
	defer func() {
		if r := recover(); r != nil {
			logx.Warnf("jobx: event listener for %s panicked: %v", ev.Kind(), r)
		}
	}()
	fn(ev)
}
