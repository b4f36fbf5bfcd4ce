package domain

import "time"

// JobStatus is the lifecycle of a queued import job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ImportJob is an asynchronous import: the uploaded document is persisted,
// a task is enqueued, and the worker runs the same pipeline a synchronous
// import would. Document bytes may be stored encrypted at rest; the store
// adapter handles that transparently.
type ImportJob struct {
	ID        string        `json:"id"`
	Group     string        `json:"group"`
	Actor     string        `json:"actor"`
	Options   ImportOptions `json:"options"`
	Status    JobStatus     `json:"status"`
	Document  []byte        `json:"-"` // never serialized in API responses
	Result    *ImportResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// Finished reports whether the job reached a terminal state.
func (j *ImportJob) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkRunning transitions the job to running.
func (j *ImportJob) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted stores the result and transitions to completed.
func (j *ImportJob) MarkCompleted(result *ImportResult) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Result = result
	j.EndedAt = &now
	j.UpdatedAt = now
}

// MarkFailed records a fatal error (extraction or infrastructure failure).
func (j *ImportJob) MarkFailed(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.EndedAt = &now
	j.UpdatedAt = now
}
