package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/podscribe/internal/config"
	"github.com/podscribe/internal/executor"
	"github.com/podscribe/internal/fileops"
	"github.com/podscribe/internal/jobs"
	"github.com/podscribe/pkg/logger"
)

// Fetcher downloads a remote media URL's audio to outputBase plus an
// extension of its choosing.
type Fetcher interface {
	Fetch(ctx context.Context, url, outputBase string) (executor.FetchInfo, error)
}

// Transcriber runs the transcription engine on a local audio file. The
// call blocks until the engine finishes; it exposes no progress hooks.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*executor.Transcription, error)
}

// Notifier sends out-of-band notifications about job outcomes.
type Notifier interface {
	NotifySuccess(title, body string) error
	NotifyError(title, body string) error
}

// Service runs the fetch -> transcribe -> format pipeline for one job at a
// time per goroutine, recording every transition in the job store. It is
// the only writer of a job's state; observers read through the store.
type Service struct {
	store       *jobs.Store
	fetcher     Fetcher
	transcriber Transcriber
	notifier    Notifier

	uploadDir        string
	progressInterval time.Duration
}

// New creates the pipeline service with the real yt-dlp and faster-whisper
// executors.
func New(cfg *config.Config, store *jobs.Store, notifier Notifier) *Service {
	return &Service{
		store:            store,
		fetcher:          executor.NewFetcher(cfg.Fetch),
		transcriber:      executor.NewWhisper(cfg.Whisper),
		notifier:         notifier,
		uploadDir:        cfg.Fetch.UploadDir,
		progressInterval: time.Duration(cfg.Jobs.ProgressPollMs) * time.Millisecond,
	}
}

// Run implements jobs.Runner. It never returns an error: every failure is
// converted into the job's terminal failed state, which is the only
// failure signal observers get.
func (s *Service) Run(ctx context.Context, jobID, url string) {
	start := time.Now()
	logger.Infof("Job %s: pipeline started for %s", jobID, url)

	outputBase := filepath.Join(s.uploadDir, jobID)

	// The fetched media is scratch data; release it on every exit path.
	defer fileops.RemoveAudioArtifacts(outputBase)

	// Stage 1: download
	s.setStage(jobID, jobs.StatusDownloading, 10, "Downloading audio...")

	info, err := s.fetcher.Fetch(ctx, url, outputBase)
	if err != nil {
		s.fail(jobID, "download", err)
		return
	}
	s.setProgress(jobID, 20, fmt.Sprintf("Downloaded: %s", info.Title))

	// Stage 2: locate the downloaded file
	s.setStage(jobID, jobs.StatusProcessing, 25, "Preparing audio for transcription...")

	audioPath, err := fileops.FindAudioFile(outputBase)
	if err != nil {
		s.fail(jobID, "locate audio", err)
		return
	}

	// Stage 3: transcribe, estimating progress while the engine runs
	s.setStage(jobID, jobs.StatusTranscribing, 30, "Transcribing audio...")

	transcription, err := s.transcribeWithProgress(ctx, jobID, audioPath, info.DurationSeconds)
	if err != nil {
		s.fail(jobID, "transcription", err)
		return
	}

	// Stage 4: format segments
	s.setStage(jobID, jobs.StatusFormatting, 90, "Formatting transcript...")

	result := &jobs.Result{
		Title:      info.Title,
		Transcript: formatSegments(transcription.Segments),
		FullText:   strings.TrimSpace(transcription.FullText),
	}
	s.setProgress(jobID, 95, "Finalizing transcript...")

	// Stage 5: terminal status and result land in one atomic update
	if err := s.store.Complete(jobID, result); err != nil {
		logger.Errorf("Job %s: could not record completion: %v", jobID, err)
		return
	}

	logger.Infof("Job %s: completed in %s (%d segments)", jobID, time.Since(start).Round(time.Second), len(result.Transcript))
	s.notifySuccess(jobID, result)
}

// transcribeWithProgress launches the blocking engine call on an inner
// goroutine that only signals completion, while this loop owns all
// progress writes. That keeps a single writer racing nobody: estimated
// progress can never interleave with the final result.
func (s *Service) transcribeWithProgress(ctx context.Context, jobID, audioPath string, mediaSeconds float64) (*executor.Transcription, error) {
	expected := jobs.ExpectedTranscribeDuration(mediaSeconds)
	start := time.Now()

	type outcome struct {
		transcription *executor.Transcription
		err           error
	}

	done := make(chan outcome, 1)
	go func() {
		transcription, err := s.transcriber.Transcribe(ctx, audioPath)
		done <- outcome{transcription, err}
	}()

	interval := s.progressInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			return out.transcription, out.err
		case <-ticker.C:
			elapsed := time.Since(start)
			progress := jobs.EstimateTranscribeProgress(elapsed, expected)
			s.setProgress(jobID, progress, fmt.Sprintf("Transcribing audio... (%ds elapsed)", int(elapsed.Seconds())))
		}
	}
}

// formatSegments converts raw engine segments into the presentation form,
// preserving the engine's ascending order.
func formatSegments(raw []executor.RawSegment) []jobs.Segment {
	segments := make([]jobs.Segment, 0, len(raw))
	for _, seg := range raw {
		start := seg.Start
		if start < 0 {
			start = 0
		}
		segments = append(segments, jobs.Segment{
			Timestamp:    jobs.FormatTimestamp(start),
			StartSeconds: start,
			Text:         strings.TrimSpace(seg.Text),
		})
	}
	return segments
}

func (s *Service) setStage(jobID string, status jobs.Status, progress int, message string) {
	if err := s.store.SetStage(jobID, status, progress, message); err != nil {
		logger.Errorf("Job %s: stage update rejected: %v", jobID, err)
	}
}

func (s *Service) setProgress(jobID string, progress int, message string) {
	if err := s.store.SetProgress(jobID, progress, message); err != nil {
		logger.Errorf("Job %s: progress update rejected: %v", jobID, err)
	}
}

func (s *Service) fail(jobID, stage string, err error) {
	cause := fmt.Sprintf("%s failed: %v", stage, err)
	logger.Errorf("Job %s: %s", jobID, cause)

	if storeErr := s.store.Fail(jobID, cause); storeErr != nil {
		logger.Errorf("Job %s: could not record failure: %v", jobID, storeErr)
	}
	s.notifyError(jobID, stage, err)
}

func (s *Service) notifySuccess(jobID string, result *jobs.Result) {
	if s.notifier == nil {
		return
	}

	body := fmt.Sprintf("**%s**\n\nJob: %s\nSegments: %d", result.Title, jobID, len(result.Transcript))
	if err := s.notifier.NotifySuccess("Transcript Ready", body); err != nil {
		logger.Warnf("Failed to send notification: %v", err)
	}
}

func (s *Service) notifyError(jobID, stage string, err error) {
	if s.notifier == nil {
		return
	}

	body := fmt.Sprintf("Job: %s\nFailed at: %s\nError: %v", jobID, stage, err)
	if notifyErr := s.notifier.NotifyError("Transcription Failed", body); notifyErr != nil {
		logger.Warnf("Failed to send error notification: %v", notifyErr)
	}
}
