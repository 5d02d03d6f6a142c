package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/podscribe/internal/config"
	"github.com/podscribe/pkg/logger"
)

// Whisper transcribes audio files via a faster-whisper helper script.
// The call is synchronous and has no progress output; callers that need
// in-flight progress have to estimate it themselves.
type Whisper struct {
	cfg config.WhisperConfig
}

// NewWhisper creates a new Whisper executor.
func NewWhisper(cfg config.WhisperConfig) *Whisper {
	return &Whisper{cfg: cfg}
}

// RawSegment is one utterance span as produced by the engine.
type RawSegment struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// Transcription is the engine's full output for one file.
type Transcription struct {
	FullText string       `json:"text"`
	Segments []RawSegment `json:"segments"`
}

// Transcribe runs the engine on audioPath and returns the parsed result.
// The helper script writes a JSON document {text, segments:[{start,text}]}
// next to the input file.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	outputDir := filepath.Dir(audioPath)
	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")

	model := w.cfg.Model
	if model == "" {
		model = "base"
	}

	script := w.cfg.Script
	if script == "" {
		script = "scripts/transcribe.py"
	}

	args := []string{
		script,
		audioPath,
		jsonPath,
		"--model", model,
	}
	if lang := w.cfg.Language; lang != "" && lang != "auto" {
		args = append(args, "--language", lang)
	}

	logger.Infof("Transcribing (faster-whisper %s): %s", model, filepath.Base(audioPath))
	logger.Debugf("  Command: python3 %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "python3", args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup

	wg.Add(2)
	go StreamDimmed(&wg, stdoutPipe, &stdoutBuf)
	go StreamDimmed(&wg, stderrPipe, &stderrBuf)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start transcription: %w", err)
	}

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("transcription failed: %w\nStderr: %s", err, stderrBuf.String())
	}

	// The script may exit 0 but still report failure on stderr.
	stderrStr := stderrBuf.String()
	if strings.Contains(stderrStr, "Error:") || strings.Contains(stderrStr, "Traceback") {
		return nil, fmt.Errorf("transcription reported errors:\n%s", stderrStr)
	}

	defer func() {
		if err := os.Remove(jsonPath); err != nil {
			logger.Debugf("Could not remove transcript artifact %s: %v", jsonPath, err)
		}
	}()

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("transcript not created: %w\nOutput: %s", err, stdoutBuf.String())
	}

	var result Transcription
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	if result.FullText == "" && len(result.Segments) == 0 {
		return nil, fmt.Errorf("transcript is empty (transcription failed)")
	}

	logger.Infof("Transcription complete: %d segments", len(result.Segments))
	return &result, nil
}
