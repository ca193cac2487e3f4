// Package ingest runs the asynchronous write pipeline: normalize, chunk,
// embed, batch-write with retries, and track every job through its state
// machine.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fusedex/fusedex/internal/domain"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
	"github.com/fusedex/fusedex/internal/domain/user"
	"github.com/fusedex/fusedex/internal/domain/value"
	"github.com/fusedex/fusedex/internal/logger"
	"github.com/fusedex/fusedex/internal/metrics"
	"github.com/fusedex/fusedex/internal/normalize"
	"github.com/fusedex/fusedex/internal/queue"
)

// Config holds the write pipeline settings.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	MaxAttempts  int
	BackoffBase  time.Duration
}

// DocInput is one submitted document. Source is the caller's arbitrary
// JSON object, normalized during processing.
type DocInput struct {
	ID          string          `json:"id,omitempty"`
	TenantID    string          `json:"tenant_id,omitempty"`
	AccessLevel int             `json:"access_level"`
	Source      json.RawMessage `json:"source"`
}

// Service accepts ingestion jobs and processes them off the queue.
type Service struct {
	docs       DocumentWriter
	jobs       JobStore
	colls      CollectionChecker
	queue      queue.Queue
	embedder   domain.Embedder
	cache      Invalidator
	normalizer *normalize.Normalizer
	cfg        Config
}

// New creates the ingestion service.
func New(
	docs DocumentWriter,
	jobs JobStore,
	colls CollectionChecker,
	q queue.Queue,
	embedder domain.Embedder,
	cache Invalidator,
	normalizer *normalize.Normalizer,
	cfg Config,
) *Service {
	return &Service{
		docs:       docs,
		jobs:       jobs,
		colls:      colls,
		queue:      q,
		embedder:   embedder,
		cache:      cache,
		normalizer: normalizer,
		cfg:        cfg,
	}
}

// Submit accepts a batch for asynchronous processing and returns the
// queued job. Per-document problems surface later in the job's chunk
// results; Submit only rejects empty or oversized batches.
func (s *Service) Submit(
	ctx context.Context, collectionName string, caller user.Context, inputs []DocInput,
) (domjob.Job, error) {
	if len(inputs) == 0 {
		return domjob.Job{}, fmt.Errorf("empty document batch: %w", domain.ErrValidation)
	}

	// Documents inherit the caller's tenant unless a cross-tenant caller
	// addressed one explicitly.
	for i := range inputs {
		if inputs[i].TenantID != "" && inputs[i].TenantID != caller.TenantID() &&
			caller.Role() != user.RoleCrossTenant {
			return domjob.Job{}, fmt.Errorf(
				"cannot write into tenant %q: %w", inputs[i].TenantID, domain.ErrAuth)
		}
		if inputs[i].TenantID == "" {
			inputs[i].TenantID = caller.TenantID()
		}
	}

	payload, err := json.Marshal(inputs)
	if err != nil {
		return domjob.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	j := domjob.Job{
		ID:         uuid.NewString(),
		Collection: collectionName,
		TenantID:   caller.TenantID(),
		Status:     domjob.Queued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.jobs.SavePayload(ctx, j.ID, payload); err != nil {
		return domjob.Job{}, err
	}
	if err := s.jobs.Save(ctx, &j); err != nil {
		return domjob.Job{}, err
	}
	if err := s.queue.Enqueue(ctx, j.ID); err != nil {
		return domjob.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	metrics.IngestQueueDepth.Inc()

	return j, nil
}

// Status returns a job record by ID.
func (s *Service) Status(ctx context.Context, jobID string) (domjob.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

// Process runs one dequeued job to a terminal state. Replayed deliveries
// of finished jobs are no-ops.
func (s *Service) Process(ctx context.Context, jobID string) error {
	j, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() {
		return nil
	}
	defer metrics.IngestQueueDepth.Dec()

	exists, err := s.colls.Exists(ctx, j.Collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		j.Transition(domjob.Failed, time.Now().UTC())
		j.Error = fmt.Sprintf("collection %q does not exist", j.Collection)
		metrics.IngestJobsTotal.WithLabelValues(string(domjob.Failed)).Inc()
		return s.jobs.Save(ctx, &j)
	}

	payload, err := s.jobs.GetPayload(ctx, jobID)
	if err != nil {
		return err
	}
	var inputs []DocInput
	if err := json.Unmarshal(payload, &inputs); err != nil {
		j.Transition(domjob.Failed, time.Now().UTC())
		j.Error = "corrupt job payload"
		metrics.IngestJobsTotal.WithLabelValues(string(domjob.Failed)).Inc()
		return s.jobs.Save(ctx, &j)
	}

	j.Transition(domjob.Running, time.Now().UTC())
	if err := s.jobs.Save(ctx, &j); err != nil {
		return err
	}

	docs, results := s.prepare(ctx, inputs)
	results = append(results, s.writeBatches(ctx, j.Collection, docs)...)
	j.Chunks = results

	written := 0
	failed := 0
	tenants := make(map[string]struct{})
	for _, r := range results {
		if r.OK {
			written++
		} else {
			failed++
		}
	}
	for _, d := range docs {
		tenants[d.TenantID()] = struct{}{}
	}

	switch {
	case failed == 0:
		j.Transition(domjob.Succeeded, time.Now().UTC())
	case written == 0:
		j.Transition(domjob.Failed, time.Now().UTC())
		j.Error = "no documents written"
	default:
		j.Transition(domjob.PartiallyFailed, time.Now().UTC())
	}
	metrics.IngestJobsTotal.WithLabelValues(string(j.Status)).Inc()

	// Bump cache generations even on partial writes: anything written must
	// be visible to the next read.
	if written > 0 {
		for tenant := range tenants {
			if err := s.cache.Invalidate(ctx, j.Collection, tenant); err != nil {
				logger.FromContext(ctx).Warn("cache invalidation failed",
					zap.String("collection", j.Collection), zap.Error(err))
			}
		}
	}

	return s.jobs.Save(ctx, &j)
}

// prepare normalizes, chunks and embeds every input. Failures become chunk
// results; survivors are returned for batch writing.
func (s *Service) prepare(ctx context.Context, inputs []DocInput) ([]domdoc.Document, []domjob.ChunkResult) {
	var docs []domdoc.Document
	var failures []domjob.ChunkResult

	for _, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}

		prepared, err := s.prepareOne(ctx, id, in)
		if err != nil {
			failures = append(failures, domjob.ChunkResult{DocumentID: id, Error: err.Error()})
			continue
		}
		docs = append(docs, prepared...)
	}
	return docs, failures
}

// prepareOne turns one input into its stored documents: the root document
// plus, for oversized text, one embedded chunk per window. Small documents
// are embedded directly.
func (s *Service) prepareOne(ctx context.Context, id string, in DocInput) ([]domdoc.Document, error) {
	parsed, err := value.Decode(in.Source)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w: %w", domain.ErrValidation, err)
	}
	flat, err := s.normalizer.Normalize(parsed)
	if err != nil {
		return nil, err
	}

	root, err := domdoc.New(id, in.TenantID, in.AccessLevel, flat.PrimaryText, flat.Fields())
	if err != nil {
		return nil, err
	}

	windows := chunkText(root.PrimaryText(), s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(windows) == 1 {
		emb, err := s.embedder.Embed(ctx, root.PrimaryText())
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", id, err)
		}
		root.SetVector(emb.Embedding)
		return []domdoc.Document{root}, nil
	}

	// Oversized: the root keeps the full text for lexical search, the
	// chunks carry the vectors.
	docs := make([]domdoc.Document, 0, len(windows)+1)
	docs = append(docs, root)
	for i, window := range windows {
		chunk := root.Chunk(chunkID(id, i), window)
		emb, err := s.embedder.Embed(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d of %s: %w", i, id, err)
		}
		chunk.SetVector(emb.Embedding)
		docs = append(docs, chunk)
	}
	return docs, nil
}

// writeBatches persists the prepared documents in batches, retrying each
// batch with exponential backoff before declaring its documents failed.
func (s *Service) writeBatches(ctx context.Context, collectionName string, docs []domdoc.Document) []domjob.ChunkResult {
	results := make([]domjob.ChunkResult, 0, len(docs))

	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		err := s.writeWithRetry(ctx, collectionName, batch)
		for i := range batch {
			r := domjob.ChunkResult{DocumentID: batch[i].ID(), ParentID: batch[i].ParentID(), OK: err == nil}
			if err != nil {
				r.Error = err.Error()
				metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
			} else {
				metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
			}
			results = append(results, r)
		}
	}
	return results
}

func (s *Service) writeWithRetry(ctx context.Context, collectionName string, batch []domdoc.Document) error {
	var err error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.IngestRetriesTotal.Inc()
			backoff := s.cfg.BackoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = s.docs.UpsertBatch(ctx, collectionName, batch); err == nil {
			return nil
		}
	}
	return fmt.Errorf("batch write exhausted %d attempts: %w", s.cfg.MaxAttempts, err)
}
