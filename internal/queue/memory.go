package queue

import (
	"context"
	"time"
)

// MemoryQueue is an in-process channel-backed queue for single-replica
// deployments and tests.
type MemoryQueue struct {
	jobs chan string
	poll time.Duration
}

// NewMemoryQueue creates the in-process queue driver.
func NewMemoryQueue(capacity int, poll time.Duration) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan string, capacity), poll: poll}
}

// Enqueue hands the job ID to a worker. Blocks when the buffer is full so
// producers back-pressure instead of dropping jobs.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ack is a no-op: the channel hand-off is final, a process crash loses the
// buffer regardless.
func (q *MemoryQueue) Ack(_ context.Context, _ string) error { return nil }

// Reclaim is a no-op for the same reason; there is nothing to recover
// after a restart.
func (q *MemoryQueue) Reclaim(_ context.Context) (int, error) { return 0, nil }

// Dequeue waits up to the poll interval for a job ID.
func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	timer := time.NewTimer(q.poll)
	defer timer.Stop()

	select {
	case jobID := <-q.jobs:
		return jobID, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
