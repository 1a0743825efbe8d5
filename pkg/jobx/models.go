package jobx

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusRetrying  JobStatus = "retrying"
	// JobStatusDead jobs exhausted their attempts and are parked for
	// inspection.
	JobStatusDead JobStatus = "dead"
)

// Job is a unit of work handed to the queue.
type Job struct {
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	MaxAttempts int             `json:"max_attempts"`
}

// NewJob encodes payload as JSON.
func NewJob(jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, jobxErrors.NewWithCause(ErrInvalidJob, err).WithDetail("type", jobType)
	}
	return Job{Type: jobType, Payload: raw}, nil
}

// JobInfo is a job as stored by a queue.
type JobInfo struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	MaxAttempts int             `json:"max_attempts"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Decode unmarshals the payload into v.
func (j *JobInfo) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return jobxErrors.NewWithCause(ErrInvalidJob, err).
			WithDetail("job_id", j.ID).
			WithDetail("type", j.Type)
	}
	return nil
}

// Exhausted reports whether the job may not be attempted again.
func (j *JobInfo) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// NewJobInfo builds the stored form of a freshly enqueued job.
func NewJobInfo(id string, job Job, now time.Time) *JobInfo {
	return &JobInfo{
		ID:          id,
		Type:        job.Type,
		Queue:       job.Queue,
		Payload:     job.Payload,
		Status:      JobStatusPending,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
