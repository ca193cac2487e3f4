// Package job models asynchronous ingestion jobs and their state machine.
package job

import "time"

// Status is the ingestion job lifecycle state.
// queued -> running -> {succeeded, partially_failed, failed}, terminal states
// are never left.
type Status string

const (
	// Queued means the job is accepted but no worker picked it up yet.
	Queued Status = "queued"
	// Running means a worker is processing the job.
	Running Status = "running"
	// Succeeded means every document was written.
	Succeeded Status = "succeeded"
	// PartiallyFailed means some batches exhausted their retries; the rest
	// was written.
	PartiallyFailed Status = "partially_failed"
	// Failed means a job-level error (e.g. collection does not exist).
	Failed Status = "failed"
)

// IsTerminal reports whether the state machine can advance further.
func (s Status) IsTerminal() bool {
	return s == Succeeded || s == PartiallyFailed || s == Failed
}

// ChunkResult records the outcome for one written document or chunk.
type ChunkResult struct {
	DocumentID string `json:"document_id"`
	ParentID   string `json:"parent_id,omitempty"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// Job is the ingestion job record. Mutated only by the ingestion worker,
// retained until polled or the retention window elapses.
type Job struct {
	ID         string        `json:"job_id"`
	Collection string        `json:"collection"`
	TenantID   string        `json:"tenant_id"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Chunks     []ChunkResult `json:"chunks,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  time.Time     `json:"started_at,omitzero"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
}

// Transition moves the job to the next state. Invalid transitions are
// ignored so replayed queue deliveries cannot regress a terminal job.
func (j *Job) Transition(next Status, now time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}
	switch {
	case j.Status == Queued && next == Running:
		j.StartedAt = now
	case j.Status == Running && next.IsTerminal():
		j.FinishedAt = now
	case j.Status == Queued && next == Failed:
		// Rejected before a worker started it.
		j.FinishedAt = now
	default:
		return false
	}
	j.Status = next
	return true
}
