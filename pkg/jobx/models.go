package jobx

import (
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusFailed     JobStatus = "failed_permanently"
)

// JobSpec describes a unit of work to be enqueued.
type JobSpec struct {
	// ID is optional; one is generated when empty.
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`

	// MaxAttempts is the ceiling on execution attempts. Default is 3.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Delay postpones eligibility for dequeue. Zero means immediately eligible.
	Delay time.Duration `json:"delay,omitempty"`
}

// JobRecord is the full representation of a job held by the queue.
// Once dequeued it is owned exclusively by the worker processing it.
type JobRecord struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
