package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/podscribe/pkg/logger"
)

// audioExtensions are the container extensions yt-dlp may produce for an
// extracted audio track, in the order we probe for them.
var audioExtensions = []string{".mp3", ".m4a", ".wav"}

// ErrAudioNotFound is returned when no downloaded audio file exists for a
// base path.
var ErrAudioNotFound = errors.New("downloaded audio file not found")

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Exists checks whether a path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindAudioFile probes the known audio extensions against a base path
// (without extension) and returns the first existing file.
func FindAudioFile(base string) (string, error) {
	for _, ext := range audioExtensions {
		path := base + ext
		if Exists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAudioNotFound, filepath.Base(base))
}

// RemoveAudioArtifacts deletes any downloaded audio files for a base path.
// Cleanup failures are logged, never propagated.
func RemoveAudioArtifacts(base string) {
	for _, ext := range audioExtensions {
		path := base + ext
		if !Exists(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warnf("Failed to remove %s: %v", path, err)
		} else {
			logger.Debugf("Removed %s", path)
		}
	}
}
