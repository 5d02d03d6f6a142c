package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/podscribe/internal/config"
	"github.com/podscribe/pkg/logger"
)

// Fetcher downloads remote media via yt-dlp, extracting the audio track.
// Works with direct MP3 links, podcast feeds, and video platforms.
type Fetcher struct {
	cfg config.FetchConfig
}

// NewFetcher creates a new media fetcher.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{cfg: cfg}
}

// FetchInfo is the metadata captured from a successful download.
type FetchInfo struct {
	Title           string
	DurationSeconds float64
}

// Fetch downloads the URL's audio to outputBase plus a container extension
// chosen by yt-dlp, and returns title and duration metadata.
func (f *Fetcher) Fetch(ctx context.Context, url, outputBase string) (FetchInfo, error) {
	bin := f.cfg.YtdlpPath
	if bin == "" {
		bin = "yt-dlp"
	}

	args := []string{
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--no-progress",
		"--print-json",
		"-o", outputBase + ".%(ext)s",
		url,
	}

	logger.Infof("Downloading audio: %s", url)
	logger.Debugf("  Command: %s %s", bin, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return FetchInfo{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return FetchInfo{}, fmt.Errorf("stderr pipe: %w", err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup

	wg.Add(2)
	go StreamDimmed(&wg, stdoutPipe, &stdoutBuf)
	go StreamDimmed(&wg, stderrPipe, &stderrBuf)

	if err := cmd.Start(); err != nil {
		return FetchInfo{}, fmt.Errorf("start yt-dlp: %w", err)
	}

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		stderrStr := strings.TrimSpace(stderrBuf.String())
		return FetchInfo{}, fmt.Errorf("download failed: %w\nStderr: %s", err, stderrStr)
	}

	info, err := parseFetchMetadata(stdoutBuf.String())
	if err != nil {
		logger.Warnf("Could not parse yt-dlp metadata: %v", err)
		return FetchInfo{Title: "Unknown Episode"}, nil
	}

	logger.Infof("Downloaded: %s (%.0fs)", info.Title, info.DurationSeconds)
	return info, nil
}

// parseFetchMetadata extracts title and duration from yt-dlp's JSON dump.
// The dump is the first stdout line starting with '{'.
func parseFetchMetadata(stdout string) (FetchInfo, error) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var meta struct {
			Title    string  `json:"title"`
			Duration float64 `json:"duration"`
		}
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			return FetchInfo{}, fmt.Errorf("unmarshal metadata: %w", err)
		}

		if meta.Title == "" {
			meta.Title = "Unknown Episode"
		}
		return FetchInfo{Title: meta.Title, DurationSeconds: meta.Duration}, nil
	}

	return FetchInfo{}, fmt.Errorf("no metadata in yt-dlp output")
}
