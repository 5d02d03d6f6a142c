package jobs

import (
	"context"
	"time"

	"github.com/podscribe/pkg/logger"
)

// Event is one snapshot delivered to a stream observer. Result and Error
// are populated only on the terminal event.
type Event struct {
	Status   Status  `json:"status,omitempty"`
	Progress int     `json:"progress"`
	Message  string  `json:"message,omitempty"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// defaultWatchInterval is how often a watcher polls the store.
const defaultWatchInterval = 500 * time.Millisecond

// Watcher turns the job store into a live event sequence per job. Each
// Watch call polls independently, so observers never block the worker and
// a disconnecting observer never affects the job.
type Watcher struct {
	store    *Store
	interval time.Duration
}

// NewWatcher creates a watcher polling at the given interval (the default
// is used when zero).
func NewWatcher(store *Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watcher{store: store, interval: interval}
}

// Watch returns a channel of state snapshots for the job. The channel
// always starts from current state (no history replay), suppresses
// consecutive snapshots with unchanged status and progress, and closes
// after exactly one terminal event — or after a single not-found event if
// the id is unknown at start. Cancelling ctx ends the stream early.
func (w *Watcher) Watch(ctx context.Context, id string) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		job, ok := w.store.Get(id)
		if !ok {
			w.send(ctx, events, Event{Error: "job not found"})
			return
		}

		if !w.send(ctx, events, snapshot(job)) {
			return
		}
		if job.Status.IsTerminal() {
			return
		}

		lastStatus := job.Status
		lastProgress := job.Progress

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, ok = w.store.Get(id)
			if !ok {
				// Jobs are never evicted while observed; if one vanishes
				// anyway, end the stream silently.
				logger.Warnf("Job disappeared mid-stream: %s", id)
				return
			}

			if job.Status.IsTerminal() {
				w.send(ctx, events, snapshot(job))
				return
			}

			if job.Status == lastStatus && job.Progress == lastProgress {
				continue
			}

			if !w.send(ctx, events, snapshot(job)) {
				return
			}
			lastStatus = job.Status
			lastProgress = job.Progress
		}
	}()

	return events
}

// send delivers an event unless the observer is gone.
func (w *Watcher) send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func snapshot(job Job) Event {
	return Event{
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Result:   job.Result,
		Error:    job.Error,
	}
}
