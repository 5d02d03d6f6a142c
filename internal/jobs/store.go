package jobs

import (
	"errors"
	"fmt"
	"sync"
)

// ErrJobExists is returned when creating a job with an id already in use.
var ErrJobExists = errors.New("job id already exists")

// ErrUnknownJob is returned when an id is not present in the store.
var ErrUnknownJob = errors.New("unknown job")

// ErrJobTerminal is returned when mutating a completed or failed job.
var ErrJobTerminal = errors.New("job already in terminal state")

// Store is the in-memory job record store. One coarse lock guards the
// whole map; job counts are small and writes arrive at most every couple
// of seconds per job, so correctness wins over throughput here.
//
// The store owns all Job instances. There is one writer per job (its
// pipeline worker) and any number of readers (stream watchers); readers
// only ever receive snapshot copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new job. A duplicate id is an internal invariant
// violation (ids are generated, not user-supplied) and is reported so the
// caller can regenerate.
func (s *Store) Create(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get returns a snapshot copy of the job, or false if the id is unknown.
// The Result pointer is shared but is never mutated once set.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetStage advances a job to the given stage. Transitions are forward-only;
// moving backwards or out of a terminal state is rejected. Progress never
// decreases: a stage entry carrying a lower value keeps the current one.
func (s *Store) SetStage(id string, status Status, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}
	if statusRank[status] < statusRank[job.Status] {
		return fmt.Errorf("invalid transition: %s -> %s", job.Status, status)
	}

	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Message = message
	return nil
}

// SetProgress updates progress and message within the current stage.
// Lower values are dropped so progress stays monotonic.
func (s *Store) SetProgress(id string, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}

	if progress > job.Progress {
		job.Progress = progress
	}
	job.Message = message
	return nil
}

// Complete moves a job to completed, pinning progress at 100 and attaching
// the result in the same critical section so no observer can see one
// without the other.
func (s *Store) Complete(id string, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}

	job.Status = StatusCompleted
	job.Progress = 100
	job.Message = "Transcription complete"
	job.Result = result
	return nil
}

// Fail moves a job to failed with a user-facing cause. Progress keeps its
// last known value.
func (s *Store) Fail(id string, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}

	job.Status = StatusFailed
	job.Error = cause
	job.Message = "Transcription failed: " + cause
	return nil
}

// Stats summarizes jobs by state.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Stats returns current job counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Total: len(s.jobs)}
	for _, job := range s.jobs {
		switch {
		case job.Status == StatusPending:
			stats.Pending++
		case job.Status == StatusCompleted:
			stats.Completed++
		case job.Status == StatusFailed:
			stats.Failed++
		default:
			stats.Running++
		}
	}
	return stats
}
