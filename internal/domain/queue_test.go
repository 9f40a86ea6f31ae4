package domain

import (
	"sync"
	"testing"
)

func mustPayload(s string) []byte { return []byte(s) }

func TestEnqueueDequeuePriorityOvertakes(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "rag", Model: "m", Priority: PriorityLow, Payload: mustPayload(`{"q":1}`)})
	q.Enqueue(Job{ID: "2", Agent: "rag", Model: "m", Priority: PriorityHigh, Payload: mustPayload(`{"q":2}`)})

	job, ok := q.DequeueForAgent("rag")
	if !ok {
		t.Fatal("expected a job")
	}
	if job.ID != "2" {
		t.Fatalf("expected high priority job first, got %q", job.ID)
	}
}

func TestAgentIsolation(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "a1", Agent: "A", Priority: PriorityLow})
	q.Enqueue(Job{ID: "b1", Agent: "B", Priority: PriorityLow})

	job, ok := q.DequeueForAgent("B")
	if !ok || job.ID != "b1" {
		t.Fatalf("expected b1 for B, got %+v ok=%v", job, ok)
	}

	if _, ok := q.DequeueForAgent("B"); ok {
		t.Fatal("expected no more jobs for B")
	}

	job, ok = q.DequeueForAgent("A")
	if !ok || job.ID != "a1" {
		t.Fatalf("expected a1 for A, got %+v ok=%v", job, ok)
	}
}

func TestBringForwardAcrossLanes(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "A", Priority: PriorityHigh})
	q.Enqueue(Job{ID: "2", Agent: "A", Priority: PriorityLow})

	if !q.BringForwardForAgent("A") {
		t.Fatal("expected a move")
	}
	job, ok := q.DequeueForAgent("A")
	if !ok || job.ID != "1" {
		t.Fatalf("expected job 1 first, got %+v", job)
	}
}

func TestBringForwardPromotesFromLowPreservingPriorityField(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "2", Agent: "A", Priority: PriorityLow})

	if !q.BringForwardForAgent("A") {
		t.Fatal("expected a move")
	}

	job, ok := q.DequeueForAgent("A")
	if !ok || job.ID != "2" {
		t.Fatalf("expected job 2, got %+v", job)
	}
	if job.Priority != PriorityLow {
		t.Fatalf("expected original priority field 'low' preserved, got %q", job.Priority)
	}
}

func TestSkipNextRotates(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "a1", Agent: "A", Priority: PriorityLow})
	q.Enqueue(Job{ID: "b1", Agent: "B", Priority: PriorityLow})
	q.Enqueue(Job{ID: "a2", Agent: "A", Priority: PriorityLow})

	if !q.SkipNextForAgent("A") {
		t.Fatal("expected a move")
	}

	job, ok := q.DequeueForAgent("A")
	if !ok || job.ID != "a2" {
		t.Fatalf("expected a2 first after skip, got %+v", job)
	}

	job, ok = q.DequeueForAgent("A")
	if !ok || job.ID != "a1" {
		t.Fatalf("expected a1 second, got %+v", job)
	}
}

func TestSkipNextSingleJobStillReturnsTrue(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "only", Agent: "A", Priority: PriorityLow})

	if !q.SkipNextForAgent("A") {
		t.Fatal("expected true even though the move is a no-op")
	}

	job, ok := q.DequeueForAgent("A")
	if !ok || job.ID != "only" {
		t.Fatal("job must still be dequeueable after a no-op skip")
	}
}

func TestPauseIsNotConsultedByQueue(t *testing.T) {
	// Pause gating is a surface concern (spec.md 4.1/4.3); the queue
	// core itself must hand out a job regardless of pause state.
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "A", Priority: PriorityLow})

	if _, ok := q.DequeueForAgent("A"); !ok {
		t.Fatal("queue core must not consult pause state")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "A", Priority: PriorityLow})
	job, _ := q.DequeueForAgent("A")

	q.Complete(job.ID, true, "")
	q.Complete(job.ID, true, "") // second call must be a harmless no-op

	snap := q.Snapshot()
	if len(snap.Inflight) != 0 {
		t.Fatalf("expected empty inflight, got %d", len(snap.Inflight))
	}
}

func TestCancelQueuedForAgentLeavesInflightAlone(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "A", Priority: PriorityLow})
	q.Enqueue(Job{ID: "2", Agent: "A", Priority: PriorityHigh})
	q.Enqueue(Job{ID: "3", Agent: "A", Priority: PriorityLow})

	dequeued, _ := q.DequeueForAgent("A") // takes the high-priority job (id 2) inflight

	removed := q.CancelQueuedForAgent("A")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	snap := q.Snapshot()
	if len(snap.High)+len(snap.Low) != 0 {
		t.Fatal("expected both lanes empty for A")
	}
	if len(snap.Inflight) != 1 || snap.Inflight[0].ID != dequeued.ID {
		t.Fatal("expected the inflight job to survive cancel")
	}
}

func TestPeekDoesNotMutate(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "A", Priority: PriorityLow})

	result, ok := q.PeekForAgent("A")
	if !ok || result.Job.ID != "1" || result.Lane != PriorityLow || result.Position != 0 {
		t.Fatalf("unexpected peek result: %+v", result)
	}

	job, ok := q.DequeueForAgent("A")
	if !ok || job.ID != "1" {
		t.Fatal("peek must not have removed the job")
	}
}

func TestPeekInflightOnlyReturnsNothing(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(Job{ID: "1", Agent: "A", Priority: PriorityLow})
	q.DequeueForAgent("A")

	if _, ok := q.PeekForAgent("A"); ok {
		t.Fatal("inflight jobs must not be peekable")
	}
}

func TestUnrecognizedPriorityIsLow(t *testing.T) {
	job := Job{ID: "1", Agent: "A", Priority: NormalizePriority("urgent")}
	if job.Priority != PriorityLow {
		t.Fatalf("expected unrecognized priority to fall back to low, got %q", job.Priority)
	}
}

func TestConcurrentEnqueuesAllLand(t *testing.T) {
	q := NewQueue(nil)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(Job{ID: string(rune('a' + i%26)), Agent: "A", Priority: PriorityLow})
		}(i)
	}
	wg.Wait()

	snap := q.Snapshot()
	if len(snap.Low) != 200 {
		t.Fatalf("expected all 200 enqueues to land, got %d", len(snap.Low))
	}
}
