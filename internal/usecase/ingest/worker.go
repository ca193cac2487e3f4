package ingest

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/fusedex/fusedex/internal/logger"
	"github.com/fusedex/fusedex/internal/queue"
)

// Worker drains the ingestion queue into a bounded goroutine pool. One
// Worker runs per process; horizontal scale comes from more processes
// sharing the queue.
type Worker struct {
	service *Service
	queue   queue.Queue
	pool    *ants.Pool
	wg      sync.WaitGroup
}

// NewWorker creates a worker with the given pool size.
func NewWorker(service *Service, q queue.Queue, size int) (*Worker, error) {
	pool, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Worker{service: service, queue: q, pool: pool}, nil
}

// Run blocks, dequeuing job IDs and dispatching them to the pool, until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)

	if n, err := w.queue.Reclaim(ctx); err != nil {
		log.Warn("queue reclaim failed", zap.Error(err))
	} else if n > 0 {
		log.Info("re-queued unacknowledged jobs", zap.Int("count", n))
	}

	for {
		jobID, err := w.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("dequeue failed", zap.Error(err))
			continue
		}
		if jobID == "" {
			continue
		}

		w.wg.Add(1)
		submitErr := w.pool.Submit(func() {
			defer w.wg.Done()
			if err := w.service.Process(ctx, jobID); err != nil {
				// Left unacknowledged on purpose: the next Reclaim
				// retries it.
				log.Error("job processing failed",
					zap.String("job_id", jobID), zap.Error(err))
				return
			}
			if err := w.queue.Ack(ctx, jobID); err != nil {
				log.Warn("job ack failed",
					zap.String("job_id", jobID), zap.Error(err))
			}
		})
		if submitErr != nil {
			w.wg.Done()
			log.Error("pool submit failed",
				zap.String("job_id", jobID), zap.Error(submitErr))
		}
	}
}

// Stop waits for in-flight jobs and releases the pool.
func (w *Worker) Stop() {
	w.wg.Wait()
	w.pool.Release()
}
