// Package jobs runs harmonization requests asynchronously.
//
// A request is validated synchronously, registered as a queued job and
// executed on its own goroutine. Clients poll the job store for a
// point-in-time snapshot of status and progress.
//
// Job state machine:
//
//	queued -> running -> completed
//	                  -> failed
//
// Terminal states are final. Jobs live only in memory.
package jobs

import (
	"maps"
	"time"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the payload of a completed job.
type Result struct {
	OutputPath    string `json:"output_path"`
	ReplayLogPath string `json:"replay_log_path"`
}

// Job is a snapshot of one harmonization job.
type Job struct {
	ID            string     `json:"job_id"`
	Status        Status     `json:"status"`
	Progress      float64    `json:"progress"`
	OutputPath    string     `json:"output_path"`
	ReplayLogPath string     `json:"replay_log_path"`
	Result        *Result    `json:"result"`
	Error         *Error     `json:"error"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// clone returns a deep copy so callers never share state with the store.
func (j *Job) clone() Job {
	out := *j
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		e.Details = maps.Clone(j.Error.Details)
		out.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
