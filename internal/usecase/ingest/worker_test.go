package ingest

import (
	"context"
	"testing"
	"time"

	domjob "github.com/fusedex/fusedex/internal/domain/job"
	"github.com/fusedex/fusedex/internal/queue"
)

func TestWorker_ProcessesQueuedJobs(t *testing.T) {
	env := newTestEnv(testIngestConfig())
	q := queue.NewMemoryQueue(16, 10*time.Millisecond)
	env.service.queue = q

	j, err := env.service.Submit(context.Background(), "docs", member(t, "tenant-a"), []DocInput{{
		ID:     "doc-1",
		Source: sourceJSON(t, map[string]any{"text": "hello"}),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	w, err := NewWorker(env.service, q, 2)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		final, err := env.jobs.Get(context.Background(), j.ID)
		if err == nil && final.Status.IsTerminal() {
			if final.Status != domjob.Succeeded {
				t.Errorf("expected succeeded, got %q (%s)", final.Status, final.Error)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
	w.Stop()
}
