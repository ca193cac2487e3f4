package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain"
)

// listStore is the list subset the redis queue needs (ISP).
type listStore interface {
	LPush(ctx context.Context, key string, values ...string) error
	BLMove(ctx context.Context, src, dst string, timeout time.Duration) (string, error)
	LMove(ctx context.Context, src, dst string) (string, error)
	LRem(ctx context.Context, key, value string) error
}

// RedisQueue is a shared list-backed queue so any replica's workers can
// pick up any job.
type RedisQueue struct {
	store listStore
	poll  time.Duration
}

// NewRedisQueue creates the shared queue driver. poll bounds how long one
// Dequeue call blocks.
func NewRedisQueue(store listStore, poll time.Duration) *RedisQueue {
	return &RedisQueue{store: store, poll: poll}
}

// Enqueue pushes a job ID for the workers.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.store.LPush(ctx, queueKey(), jobID); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Dequeue parks the oldest job ID on the processing list and returns it.
// The ID stays parked until Ack, so a crash mid-job cannot lose it.
func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	jobID, err := q.store.BLMove(ctx, queueKey(), processingKey(), q.poll)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("dequeue: %w", err)
	}
	return jobID, nil
}

// Ack removes a handled job from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	if err := q.store.LRem(ctx, processingKey(), jobID); err != nil {
		return fmt.Errorf("ack job %s: %w", jobID, err)
	}
	return nil
}

// Reclaim drains the processing list back into the queue. Anything parked
// there at startup was dequeued by a worker that never acknowledged it.
// The list is shared across replicas, so a restart may re-queue a job
// another replica is still running; processing is replay-safe.
func (q *RedisQueue) Reclaim(ctx context.Context) (int, error) {
	n := 0
	for {
		if _, err := q.store.LMove(ctx, processingKey(), queueKey()); err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				return n, nil
			}
			return n, fmt.Errorf("reclaim: %w", err)
		}
		n++
	}
}

func queueKey() string {
	return domain.KeyPrefix + "queue:ingest"
}

func processingKey() string {
	return domain.KeyPrefix + "queue:ingest:processing"
}
