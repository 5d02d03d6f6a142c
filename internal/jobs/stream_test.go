package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 10 * time.Millisecond

// recvEvent waits for the next event or fails the test.
func recvEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// requireClosed waits for the channel to close without further events.
func requireClosed(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.False(t, ok, "expected closed stream, got event %+v", ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to close")
	}
}

func TestWatchUnknownJob(t *testing.T) {
	w := NewWatcher(NewStore(), testInterval)

	events := w.Watch(context.Background(), "nope")

	ev := recvEvent(t, events)
	assert.Equal(t, "job not found", ev.Error)
	requireClosed(t, events)
}

func TestWatchAlreadyTerminal(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))
	require.NoError(t, s.Complete("job1", &Result{Title: "Ep", FullText: "hi"}))

	w := NewWatcher(s, testInterval)
	events := w.Watch(context.Background(), "job1")

	ev := recvEvent(t, events)
	assert.Equal(t, StatusCompleted, ev.Status)
	assert.Equal(t, 100, ev.Progress)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "hi", ev.Result.FullText)
	requireClosed(t, events)
}

func TestWatchSuppressesUnchangedSnapshots(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	w := NewWatcher(s, testInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := w.Watch(ctx, "job1")

	first := recvEvent(t, events)
	assert.Equal(t, StatusPending, first.Status)

	// Several poll intervals with no change must not produce snapshots.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for unchanged job: %+v", ev)
	case <-time.After(5 * testInterval):
	}

	// A message-only change is not required to be re-emitted either.
	require.NoError(t, s.SetProgress("job1", 0, "still waiting"))
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for message-only change: %+v", ev)
	case <-time.After(5 * testInterval):
	}
}

func TestWatchDeliversTransitionsAndTerminal(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	w := NewWatcher(s, testInterval)
	events := w.Watch(context.Background(), "job1")

	ev := recvEvent(t, events)
	assert.Equal(t, StatusPending, ev.Status)

	require.NoError(t, s.SetStage("job1", StatusDownloading, 10, "Downloading audio..."))
	ev = recvEvent(t, events)
	assert.Equal(t, StatusDownloading, ev.Status)
	assert.Equal(t, 10, ev.Progress)
	assert.Nil(t, ev.Result)

	require.NoError(t, s.SetStage("job1", StatusTranscribing, 30, "Transcribing..."))
	ev = recvEvent(t, events)
	assert.Equal(t, StatusTranscribing, ev.Status)

	require.NoError(t, s.Complete("job1", &Result{Title: "Ep", FullText: "done", Transcript: []Segment{{Timestamp: "00:00", Text: "done"}}}))
	ev = recvEvent(t, events)
	assert.Equal(t, StatusCompleted, ev.Status)
	assert.Equal(t, 100, ev.Progress)
	require.NotNil(t, ev.Result)
	assert.Len(t, ev.Result.Transcript, 1)

	// Terminal event is the last one.
	requireClosed(t, events)
}

func TestWatchFailedJobCarriesError(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	w := NewWatcher(s, testInterval)
	events := w.Watch(context.Background(), "job1")
	recvEvent(t, events) // initial pending snapshot

	require.NoError(t, s.Fail("job1", "download failed: unreachable"))

	ev := recvEvent(t, events)
	assert.Equal(t, StatusFailed, ev.Status)
	assert.Equal(t, "download failed: unreachable", ev.Error)
	assert.Nil(t, ev.Result)
	requireClosed(t, events)
}

func TestWatchCancelledContext(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	w := NewWatcher(s, testInterval)
	ctx, cancel := context.WithCancel(context.Background())

	events := w.Watch(ctx, "job1")
	recvEvent(t, events)

	cancel()
	requireClosed(t, events)

	// The job itself is untouched by the observer going away.
	job, ok := s.Get("job1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, job.Status)
}

func TestWatchMultipleObservers(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	w := NewWatcher(s, testInterval)
	a := w.Watch(context.Background(), "job1")
	b := w.Watch(context.Background(), "job1")

	recvEvent(t, a)
	recvEvent(t, b)

	require.NoError(t, s.Complete("job1", &Result{Title: "Ep"}))

	for _, events := range []<-chan Event{a, b} {
		ev := recvEvent(t, events)
		assert.Equal(t, StatusCompleted, ev.Status)
		requireClosed(t, events)
	}
}
