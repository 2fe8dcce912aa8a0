package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the in-memory job table.
//
// Thread-safety: every read and mutation takes the mutex. Get returns a
// copy, so a snapshot is always consistent even while a worker updates the
// job.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewStore creates an empty store. now supplies timestamps; nil means
// time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{jobs: make(map[string]*Job), now: now}
}

// Register adds a queued job.
func (s *Store) Register(id, outputPath, replayLogPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job %s already registered", id)
	}
	s.jobs[id] = &Job{
		ID:            id,
		Status:        StatusQueued,
		OutputPath:    outputPath,
		ReplayLogPath: replayLogPath,
		CreatedAt:     s.now(),
	}
	return nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.clone(), true
}

// List returns snapshots of every job, oldest first.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Start moves a queued job to running with progress 0.
func (s *Store) Start(id string) bool {
	return s.update(id, func(job *Job) {
		now := s.now()
		job.Status = StatusRunning
		job.Progress = 0
		job.StartedAt = &now
	})
}

// UpdateProgress sets progress to min(1, processed/total), or 1 when total
// is zero. The value overwrites the previous one.
func (s *Store) UpdateProgress(id string, processed, total int) bool {
	return s.update(id, func(job *Job) {
		if total == 0 {
			job.Progress = 1
			return
		}
		job.Progress = min(1, float64(processed)/float64(total))
	})
}

// Complete marks the job completed with progress 1.
func (s *Store) Complete(id string, result *Result) bool {
	return s.update(id, func(job *Job) {
		now := s.now()
		job.Status = StatusCompleted
		job.Progress = 1
		job.Result = result
		job.FinishedAt = &now
	})
}

// Fail marks the job failed.
func (s *Store) Fail(id string, jerr *Error) bool {
	return s.update(id, func(job *Job) {
		now := s.now()
		job.Status = StatusFailed
		job.Error = jerr
		job.FinishedAt = &now
	})
}

// update applies fn to a non-terminal job. It reports false when the job
// is unknown or already terminal.
func (s *Store) update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return false
	}
	fn(job)
	return true
}
