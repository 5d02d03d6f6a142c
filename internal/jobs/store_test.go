package jobs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Create(NewJob("job1", "https://example.com/a.mp3")))

	job, ok := s.Get("job1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "https://example.com/a.mp3", job.URL)

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestStoreCreateDuplicate(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Create(NewJob("job1", "u")))
	err := s.Create(NewJob("job1", "u"))
	require.ErrorIs(t, err, ErrJobExists)
}

func TestStoreGetReturnsSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	snap, _ := s.Get("job1")
	snap.Status = StatusFailed
	snap.Progress = 99

	// Mutating the snapshot must not leak into the store.
	job, _ := s.Get("job1")
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
}

func TestStoreStageTransitions(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))

	require.NoError(t, s.SetStage("job1", StatusDownloading, 10, "Downloading audio..."))
	require.NoError(t, s.SetStage("job1", StatusProcessing, 25, "Preparing..."))
	require.NoError(t, s.SetStage("job1", StatusTranscribing, 30, "Transcribing..."))

	// Backwards is rejected.
	err := s.SetStage("job1", StatusDownloading, 40, "again")
	require.Error(t, err)

	job, _ := s.Get("job1")
	assert.Equal(t, StatusTranscribing, job.Status)
	assert.Equal(t, 30, job.Progress)
}

func TestStoreProgressMonotonic(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))
	require.NoError(t, s.SetStage("job1", StatusTranscribing, 50, "m1"))

	// A lower value keeps the current progress but the message still moves.
	require.NoError(t, s.SetProgress("job1", 40, "m2"))

	job, _ := s.Get("job1")
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, "m2", job.Message)

	require.NoError(t, s.SetProgress("job1", 60, "m3"))
	job, _ = s.Get("job1")
	assert.Equal(t, 60, job.Progress)
}

func TestStoreComplete(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))
	require.NoError(t, s.SetStage("job1", StatusFormatting, 95, "Finalizing..."))

	result := &Result{Title: "Ep 1", FullText: "hello", Transcript: []Segment{{Timestamp: "00:00", Text: "hello"}}}
	require.NoError(t, s.Complete("job1", result))

	job, _ := s.Get("job1")
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Ep 1", job.Result.Title)
	assert.Empty(t, job.Error)

	// Terminal state is frozen.
	require.ErrorIs(t, s.SetProgress("job1", 99, "late"), ErrJobTerminal)
	require.ErrorIs(t, s.SetStage("job1", StatusFailed, 0, "late"), ErrJobTerminal)
	require.ErrorIs(t, s.Fail("job1", "late"), ErrJobTerminal)
	require.ErrorIs(t, s.Complete("job1", result), ErrJobTerminal)
}

func TestStoreFail(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))
	require.NoError(t, s.SetStage("job1", StatusDownloading, 10, "Downloading..."))

	require.NoError(t, s.Fail("job1", "download failed: 404"))

	job, _ := s.Get("job1")
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "download failed: 404", job.Error)
	assert.Contains(t, job.Message, "download failed")
	// Progress keeps its last known value, not reset.
	assert.Equal(t, 10, job.Progress)
	assert.Nil(t, job.Result)

	require.ErrorIs(t, s.Complete("job1", &Result{}), ErrJobTerminal)
}

func TestStoreUnknownJob(t *testing.T) {
	s := NewStore()

	require.ErrorIs(t, s.SetStage("nope", StatusDownloading, 10, "m"), ErrUnknownJob)
	require.ErrorIs(t, s.SetProgress("nope", 10, "m"), ErrUnknownJob)
	require.ErrorIs(t, s.Complete("nope", &Result{}), ErrUnknownJob)
	require.ErrorIs(t, s.Fail("nope", "m"), ErrUnknownJob)
}

func TestStoreStats(t *testing.T) {
	s := NewStore()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Create(NewJob(fmt.Sprintf("job%d", i), "u")))
	}
	require.NoError(t, s.SetStage("job1", StatusTranscribing, 30, "m"))
	require.NoError(t, s.Complete("job2", &Result{}))
	require.NoError(t, s.Fail("job3", "boom"))

	stats := s.Stats()
	assert.Equal(t, Stats{Total: 4, Pending: 1, Running: 1, Completed: 1, Failed: 1}, stats)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(NewJob("job1", "u")))
	require.NoError(t, s.SetStage("job1", StatusTranscribing, 30, "m"))

	var wg sync.WaitGroup

	// One writer, many readers, as in production.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := 30; p <= 90; p++ {
			_ = s.SetProgress("job1", p, "m")
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for i := 0; i < 200; i++ {
				job, ok := s.Get("job1")
				if !ok {
					continue
				}
				// Each reader must observe non-decreasing progress.
				if job.Progress < last {
					t.Errorf("progress went backwards: %d -> %d", last, job.Progress)
					return
				}
				last = job.Progress
			}
		}()
	}

	wg.Wait()
}
