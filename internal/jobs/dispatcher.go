package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/podscribe/pkg/logger"
)

// Runner executes the transcription pipeline for one job. It must record
// the outcome in the store itself; Run never returns an error because
// pipeline failures surface only through the job's terminal state.
type Runner interface {
	Run(ctx context.Context, jobID, url string)
}

// maxIDAttempts bounds regeneration when a generated id collides with an
// existing job. The 8-char space makes more than one attempt vanishingly
// rare.
const maxIDAttempts = 5

// Dispatcher accepts submissions, seeds the store, and launches a worker
// goroutine per job. Submit returns before any pipeline stage runs.
type Dispatcher struct {
	store  *Store
	runner Runner

	// newID is swappable for deterministic tests.
	newID func() string
}

// NewDispatcher creates a dispatcher backed by the given store and runner.
func NewDispatcher(store *Store, runner Runner) *Dispatcher {
	return &Dispatcher{
		store:  store,
		runner: runner,
		newID:  func() string { return uuid.New().String()[:8] },
	}
}

// Submit creates a pending job for the URL and starts its worker. The URL
// is assumed already validated at the boundary.
func (d *Dispatcher) Submit(ctx context.Context, url string) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := d.newID()

		err := d.store.Create(NewJob(id, url))
		if errors.Is(err, ErrJobExists) {
			logger.Warnf("Job id collision, regenerating: %s", id)
			continue
		}
		if err != nil {
			return "", err
		}

		logger.Infof("Job submitted: %s (%s)", id, url)
		go d.runner.Run(ctx, id, url)
		return id, nil
	}

	return "", fmt.Errorf("could not allocate job id after %d attempts", maxIDAttempts)
}
