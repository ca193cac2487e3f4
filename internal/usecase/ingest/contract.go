package ingest

import (
	"context"

	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
)

// DocumentWriter persists document batches.
type DocumentWriter interface {
	UpsertBatch(ctx context.Context, collectionName string, docs []domdoc.Document) error
}

// JobStore persists job records and their submit payloads.
type JobStore interface {
	Save(ctx context.Context, j *domjob.Job) error
	Get(ctx context.Context, id string) (domjob.Job, error)
	SavePayload(ctx context.Context, id string, payload []byte) error
	GetPayload(ctx context.Context, id string) ([]byte, error)
}

// CollectionChecker verifies the target collection before processing.
type CollectionChecker interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// Invalidator bumps the result cache generation after writes.
type Invalidator interface {
	Invalidate(ctx context.Context, collection, tenant string) error
}
