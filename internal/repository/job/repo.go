// Package job persists ingestion job records with a retention TTL.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
)

// store is the consumer interface for job records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo implements job record persistence.
type Repo struct {
	store     store
	retention time.Duration
}

// New creates a job repository. Records expire after retention.
func New(s store, retention time.Duration) *Repo {
	return &Repo{store: s, retention: retention}
}

// Save writes the job record, refreshing its retention window.
func (r *Repo) Save(ctx context.Context, j *domjob.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", j.ID, err)
	}
	if err := r.store.SetWithTTL(ctx, jobKey(j.ID), data, r.retention); err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

// Get returns a job record by ID. Expired or unknown jobs yield
// domain.ErrJobNotFound.
func (r *Repo) Get(ctx context.Context, id string) (domjob.Job, error) {
	data, err := r.store.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domjob.Job{}, domain.ErrJobNotFound
		}
		return domjob.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	var j domjob.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return domjob.Job{}, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return j, nil
}

// SavePayload stores the raw submit payload next to the job record so a
// worker on any replica can process it.
func (r *Repo) SavePayload(ctx context.Context, id string, payload []byte) error {
	if err := r.store.SetWithTTL(ctx, payloadKey(id), payload, r.retention); err != nil {
		return fmt.Errorf("save payload %s: %w", id, err)
	}
	return nil
}

// GetPayload returns the raw submit payload for a job.
func (r *Repo) GetPayload(ctx context.Context, id string) ([]byte, error) {
	data, err := r.store.Get(ctx, payloadKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get payload %s: %w", id, err)
	}
	return data, nil
}

func jobKey(id string) string {
	return domain.KeyPrefix + "job:" + id
}

func payloadKey(id string) string {
	return domain.KeyPrefix + "job:" + id + ":payload"
}
