package types

import "time"

// JobStatus is the lifecycle state of a collection run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobFailed    JobStatus = "failed"
	JobCompleted JobStatus = "completed"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobRunning, JobFailed, JobCompleted:
		return true
	}
	return false
}

// JobRecord is a collection run started from this console.
type JobRecord struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Status     JobStatus  `json:"status"`
	Progress   int        `json:"progress"` // 0-100
	Message    string     `json:"message,omitempty"`
	Source     string     `json:"source,omitempty"` // "tui", "cli", "schedule"
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Duration returns how long the run took, or has been running.
func (j JobRecord) Duration(now time.Time) time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}
