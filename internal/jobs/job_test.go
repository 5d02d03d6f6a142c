package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{60, "01:00"},
		{61.8, "01:01"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{7322, "02:02:02"},
		{-5, "00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.seconds), "seconds=%v", tt.seconds)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())

	for _, s := range []Status{StatusPending, StatusDownloading, StatusProcessing, StatusTranscribing, StatusFormatting} {
		assert.False(t, s.IsTerminal(), "status=%s", s)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("abcd1234", "https://example.com/ep.mp3")

	assert.Equal(t, "abcd1234", job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Nil(t, job.Result)
	assert.Empty(t, job.Error)
	assert.False(t, job.CreatedAt.IsZero())
}
