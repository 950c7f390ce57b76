package jobx

import (
	"sync"
	"testing"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []string

	bus.Subscribe(EventJobCompleted, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "first:"+ev.(JobCompleted).JobID)
	})
	bus.Subscribe(EventJobCompleted, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "second:"+ev.(JobCompleted).JobID)
	})

	bus.Publish(JobCompleted{JobID: "j1"})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "first:j1" || got[1] != "second:j1" {
		t.Errorf("unexpected delivery order: %v", got)
	}
}

func TestBusIgnoresUnsubscribedKinds(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe(EventJobRetry, func(Event) { called = true })

	bus.Publish(JobCompleted{JobID: "j1"})

	if called {
		t.Error("listener for a different kind was invoked")
	}
}

func TestBusIsolatesPanickingListener(t *testing.T) {
	bus := NewBus()

	var delivered int
	bus.Subscribe(EventJobAdded, func(Event) {
		panic("listener blew up")
	})
	bus.Subscribe(EventJobAdded, func(Event) {
		delivered++
	})

	// Must not panic, and the second listener must still run.
	bus.Publish(JobAdded{JobID: "j1", Type: "transcription"})
	bus.Publish(JobAdded{JobID: "j2", Type: "transcription"})

	if delivered != 2 {
		t.Errorf("healthy listener delivered %d times, want 2", delivered)
	}
}

func TestEventKinds(t *testing.T) {
	tests := []struct {
		ev   Event
		want EventKind
	}{
		{JobAdded{}, EventJobAdded},
		{JobProcessing{}, EventJobProcessing},
		{JobCompleted{}, EventJobCompleted},
		{JobRetry{}, EventJobRetry},
		{JobFailedPermanently{}, EventJobFailedPermanently},
	}
	for _, tt := range tests {
		if tt.ev.Kind() != tt.want {
			t.Errorf("%T.Kind() = %s, want %s", tt.ev, tt.ev.Kind(), tt.want)
		}
	}
}
