package jobs

import (
	"fmt"
	"time"
)

// Status represents the current stage of a transcription job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusProcessing   Status = "processing"
	StatusTranscribing Status = "transcribing"
	StatusFormatting   Status = "formatting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// statusRank orders stages along the pipeline. Failed ranks alongside
// completed so that both count as furthest-forward terminal states.
var statusRank = map[Status]int{
	StatusPending:      0,
	StatusDownloading:  1,
	StatusProcessing:   2,
	StatusTranscribing: 3,
	StatusFormatting:   4,
	StatusCompleted:    5,
	StatusFailed:       5,
}

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Segment is one timed utterance span of the transcript.
type Segment struct {
	Timestamp    string  `json:"timestamp"`
	StartSeconds float64 `json:"start_seconds"`
	Text         string  `json:"text"`
}

// Result holds the output of a completed job.
type Result struct {
	Title      string    `json:"title"`
	Transcript []Segment `json:"transcript"`
	FullText   string    `json:"full_text"`
}

// Job is the mutable state of one transcription job. Instances are owned
// by the Store; callers only ever see snapshot copies.
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob creates a pending job for the given URL.
func NewJob(id, url string) *Job {
	return &Job{
		ID:        id,
		URL:       url,
		Status:    StatusPending,
		Progress:  0,
		Message:   "Job queued",
		CreatedAt: time.Now(),
	}
}

// FormatTimestamp converts seconds to MM:SS, or HH:MM:SS when the span
// reaches one hour.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
