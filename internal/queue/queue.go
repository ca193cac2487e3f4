// Package queue transports ingestion job IDs from the HTTP layer to the
// worker pool. Delivery is at-least-once; the job state machine makes
// replays harmless.
package queue

import "context"

// Queue is the job hand-off contract. A dequeued ID stays parked until
// Ack, so a worker crash never loses it; Reclaim returns parked IDs to the
// queue at startup.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue blocks up to the implementation's poll interval. An empty
	// ID with a nil error means nothing was available.
	Dequeue(ctx context.Context) (string, error)
	// Ack marks a dequeued job as handled.
	Ack(ctx context.Context, jobID string) error
	// Reclaim re-queues jobs that were dequeued but never acknowledged.
	// Returns how many were recovered.
	Reclaim(ctx context.Context) (int, error)
}
