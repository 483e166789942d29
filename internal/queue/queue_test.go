package queue

import (
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	q := New()

	q.Enqueue(JobRef{JobID: "j1", UserID: "u1"})
	q.Enqueue(JobRef{JobID: "j2", UserID: "u1"})
	q.Enqueue(JobRef{JobID: "j3", UserID: "u2"})

	if q.Length() != 3 {
		t.Fatalf("Expected length 3, got %d", q.Length())
	}

	for _, want := range []string{"j1", "j2", "j3"} {
		ref, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Expected %s, queue empty", want)
		}
		if ref.JobID != want {
			t.Fatalf("Expected %s, got %s", want, ref.JobID)
		}
	}
}

func TestDequeueEmptyDoesNotBlock(t *testing.T) {
	q := New()

	if _, ok := q.Dequeue(); ok {
		t.Fatal("Expected empty dequeue to report no job")
	}
	if q.Length() != 0 {
		t.Fatalf("Expected empty queue, got %d", q.Length())
	}
}
