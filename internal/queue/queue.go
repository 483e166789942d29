// -----------------------------------------------------------------------
// Job Queue - in-memory FIFO feeding the worker pool
// -----------------------------------------------------------------------

package queue

import (
	"sync"
)

// JobRef identifies one queued job. The durable record lives in the job
// store; the queue only carries the routing key.
type JobRef struct {
	JobID  string
	UserID string
}

// Queue is a FIFO of job references. Durability comes from the job store:
// after a restart, PENDING jobs are re-enqueued from storage, so losing the
// in-memory order costs nothing but fairness.
type Queue struct {
	mu    sync.Mutex
	items []JobRef
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a job reference.
func (q *Queue) Enqueue(ref JobRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ref)
}

// Dequeue pops the oldest reference. Returns false when the queue is empty;
// it never blocks.
func (q *Queue) Dequeue() (JobRef, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return JobRef{}, false
	}
	ref := q.items[0]
	q.items = q.items[1:]
	return ref, true
}

// Length returns the number of queued references.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
