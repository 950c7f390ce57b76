package jobxmem

import (
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/auralis/pkg/jobx"
)

func TestEnqueueAssignsDefaults(t *testing.T) {
	q := New(jobx.NewBus())

	id, err := q.Enqueue(jobx.JobSpec{Type: "transcription"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	rec, err := q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.ID != id {
		t.Errorf("id = %s, want %s", rec.ID, id)
	}
	if rec.MaxAttempts != 3 {
		t.Errorf("maxAttempts = %d, want default 3", rec.MaxAttempts)
	}
	if rec.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", rec.Attempts)
	}
	if rec.Status != jobx.JobStatusPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("createdAt not set")
	}
}

func TestEnqueueRejectsMissingType(t *testing.T) {
	q := New(jobx.NewBus())

	if _, err := q.Enqueue(jobx.JobSpec{}); err == nil {
		t.Fatal("expected error for job without type")
	}
}

func TestDequeueFIFO(t *testing.T) {
	q := New(jobx.NewBus())

	var ids []string
	for range 5 {
		id, err := q.Enqueue(jobx.JobSpec{Type: "transcription"})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, id)
	}

	for i, want := range ids {
		rec, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if rec == nil || rec.ID != want {
			t.Fatalf("dequeue %d returned %v, want id %s", i, rec, want)
		}
	}
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	q := New(jobx.NewBus())

	rec, err := q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil on empty queue, got %+v", rec)
	}
}

func TestConcurrentDequeueHandsEachRecordToOneCaller(t *testing.T) {
	q := New(jobx.NewBus())

	const jobs = 200
	for range jobs {
		if _, err := q.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rec, err := q.Dequeue()
				if err != nil {
					t.Errorf("dequeue: %v", err)
					return
				}
				if rec == nil {
					return
				}
				mu.Lock()
				seen[rec.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("dequeued %d distinct jobs, want %d", len(seen), jobs)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("job %s dequeued %d times", id, n)
		}
	}
}

func TestDelayedJobBecomesEligibleAfterDelay(t *testing.T) {
	q := New(jobx.NewBus())

	id, err := q.Enqueue(jobx.JobSpec{Type: "transcription", Delay: 40 * time.Millisecond})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if rec, _ := q.Dequeue(); rec != nil {
		t.Fatal("delayed job visible before its delay elapsed")
	}
	if q.Size() != 1 {
		t.Errorf("size = %d, want 1 (delay-waiting jobs count)", q.Size())
	}

	rec := waitForRecord(t, q, time.Second)
	if rec.ID != id {
		t.Errorf("got id %s, want %s", rec.ID, id)
	}
}

func TestDelayedJobDoesNotJumpAheadOfEligibleJobs(t *testing.T) {
	q := New(jobx.NewBus())

	delayedID, err := q.Enqueue(jobx.JobSpec{Type: "transcription", Delay: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("enqueue delayed: %v", err)
	}
	freshID, err := q.Enqueue(jobx.JobSpec{Type: "transcription"})
	if err != nil {
		t.Fatalf("enqueue fresh: %v", err)
	}

	// The fresh job is eligible now; the delayed one joins at the tail later.
	first, _ := q.Dequeue()
	if first == nil || first.ID != freshID {
		t.Fatalf("first dequeue = %v, want fresh job %s", first, freshID)
	}

	second := waitForRecord(t, q, time.Second)
	if second.ID != delayedID {
		t.Errorf("second dequeue = %s, want delayed job %s", second.ID, delayedID)
	}
}

func TestRequeuePreservesAttemptsAndError(t *testing.T) {
	q := New(jobx.NewBus())

	if _, err := q.Enqueue(jobx.JobSpec{Type: "transcription"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rec, _ := q.Dequeue()
	rec.Attempts = 2
	rec.LastError = "provider unavailable"

	if err := q.Requeue(rec, 10*time.Millisecond); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	again := waitForRecord(t, q, time.Second)
	if again.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", again.Attempts)
	}
	if again.LastError != "provider unavailable" {
		t.Errorf("lastError = %q, want preserved", again.LastError)
	}
	if again.Status != jobx.JobStatusPending {
		t.Errorf("status = %s, want pending after delay", again.Status)
	}
}

func TestEnqueuePublishesJobAdded(t *testing.T) {
	bus := jobx.NewBus()

	var mu sync.Mutex
	var added []string
	bus.Subscribe(jobx.EventJobAdded, func(ev jobx.Event) {
		mu.Lock()
		defer mu.Unlock()
		added = append(added, ev.(jobx.JobAdded).JobID)
	})

	q := New(bus)
	id, _ := q.Enqueue(jobx.JobSpec{Type: "transcription"})

	rec, _ := q.Dequeue()
	rec.Attempts = 1
	if err := q.Requeue(rec, 0); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(added) != 2 {
		t.Fatalf("job-added published %d times, want 2 (enqueue + retry)", len(added))
	}
	for _, got := range added {
		if got != id {
			t.Errorf("job-added id = %s, want %s", got, id)
		}
	}
}

func TestCloseCancelsDelayTimersAndRejectsEnqueue(t *testing.T) {
	q := New(jobx.NewBus())

	if _, err := q.Enqueue(jobx.JobSpec{Type: "transcription", Delay: 20 * time.Millisecond}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	q.Close()

	if _, err := q.Enqueue(jobx.JobSpec{Type: "transcription"}); err == nil {
		t.Error("expected enqueue on closed queue to fail")
	}

	// The cancelled timer must not resurrect the delayed job.
	time.Sleep(60 * time.Millisecond)
	if rec, _ := q.Dequeue(); rec != nil {
		t.Errorf("cancelled delayed job became eligible: %+v", rec)
	}
	if q.Size() != 0 {
		t.Errorf("size = %d, want 0 after close", q.Size())
	}
}

// waitForRecord polls Dequeue until a record shows up or the timeout hits.
func waitForRecord(t *testing.T, q *MemoryQueue, timeout time.Duration) *jobx.JobRecord {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		rec, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if rec != nil {
			return rec
		}
		if time.Now().After(deadline) {
			break
		}
	}
	t.Fatal("timed out waiting for a record to become eligible")
	return nil
}
