package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/podscribe/pkg/logger"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Whisper WhisperConfig `mapstructure:"whisper"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Apprise AppriseConfig `mapstructure:"apprise"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RateLimitRPM caps job submissions per minute (0 = no limit).
	RateLimitRPM int `mapstructure:"rate_limit_rpm"`
}

type WhisperConfig struct {
	// Model: "tiny", "base", "small", "medium", "large-v2"
	Model string `mapstructure:"model"`
	// Language: source language hint ("auto" for auto-detect)
	Language string `mapstructure:"language"`
	// Script: path to the transcription helper script
	Script string `mapstructure:"script"`
}

type FetchConfig struct {
	// UploadDir: staging directory for downloaded audio
	UploadDir string `mapstructure:"upload_dir"`
	// YtdlpPath: yt-dlp binary (default resolved from PATH)
	YtdlpPath string `mapstructure:"ytdlp_path"`
}

type JobsConfig struct {
	// StreamPollMs: watcher poll interval for progress streams
	StreamPollMs int `mapstructure:"stream_poll_ms"`
	// ProgressPollMs: worker estimate interval during transcription
	ProgressPollMs int `mapstructure:"progress_poll_ms"`
}

type AppriseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"` // Apprise API URL
	Key     string `mapstructure:"key"`      // Apprise config key
	Tag     string `mapstructure:"tag"`      // Tag to filter services
}

// setDefaults registers fallbacks so a minimal config file still works.
func setDefaults() {
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.rate_limit_rpm", 0)
	viper.SetDefault("whisper.model", "base")
	viper.SetDefault("whisper.language", "auto")
	viper.SetDefault("whisper.script", "scripts/transcribe.py")
	viper.SetDefault("fetch.upload_dir", "temp_audio")
	viper.SetDefault("fetch.ytdlp_path", "yt-dlp")
	viper.SetDefault("jobs.stream_poll_ms", 500)
	viper.SetDefault("jobs.progress_poll_ms", 2000)
}

// ChangeCallback is called when config changes.
type ChangeCallback func(old, new *Config)

// Manager handles config loading and hot-reload.
type Manager struct {
	mu        sync.RWMutex
	cfg       *Config
	callbacks []ChangeCallback
	stop      chan struct{}

	path        string
	lastModTime time.Time
}

// NewManager creates a config manager with hot-reload support via polling.
func NewManager(path string) (*Manager, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("PODSCRIBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	var lastMod time.Time
	if stat, err := os.Stat(path); err == nil {
		lastMod = stat.ModTime()
	}

	m := &Manager{
		cfg:         &cfg,
		stop:        make(chan struct{}),
		path:        path,
		lastModTime: lastMod,
	}

	go m.pollForChanges(10 * time.Second)

	return m, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) OnChange(cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *Manager) Stop() {
	close(m.stop)
}

func (m *Manager) pollForChanges(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			stat, err := os.Stat(m.path)
			if err != nil {
				continue
			}

			m.mu.RLock()
			lastMod := m.lastModTime
			m.mu.RUnlock()

			if stat.ModTime().After(lastMod) {
				logger.Infof("Config file changed, reloading...")

				if err := viper.ReadInConfig(); err != nil {
					logger.Errorf("Failed to re-read config: %v", err)
					continue
				}

				m.mu.Lock()
				m.lastModTime = stat.ModTime()
				m.mu.Unlock()

				m.reload()
			}
		}
	}
}

func (m *Manager) reload() {
	var newCfg Config
	if err := viper.Unmarshal(&newCfg); err != nil {
		logger.Errorf("Failed to reload config: %v", err)
		return
	}

	m.mu.Lock()
	oldCfg := m.cfg
	m.cfg = &newCfg
	callbacks := m.callbacks
	m.mu.Unlock()

	logChanges(oldCfg, &newCfg, "")

	for _, cb := range callbacks {
		cb(oldCfg, &newCfg)
	}
}

func logChanges(old, cur any, prefix string) {
	oldVal := reflect.ValueOf(old)
	newVal := reflect.ValueOf(cur)

	if oldVal.Kind() == reflect.Ptr {
		oldVal = oldVal.Elem()
	}
	if newVal.Kind() == reflect.Ptr {
		newVal = newVal.Elem()
	}

	if oldVal.Kind() != reflect.Struct {
		return
	}

	t := oldVal.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		oldField := oldVal.Field(i)
		newField := newVal.Field(i)

		fieldName := field.Name
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if oldField.Kind() == reflect.Struct {
			logChanges(oldField.Interface(), newField.Interface(), fieldName)
			continue
		}

		if !reflect.DeepEqual(oldField.Interface(), newField.Interface()) {
			logger.Infof("  %s: %v -> %v", fieldName, oldField.Interface(), newField.Interface())
		}
	}
}

// Load is a convenience function for one-time loading.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("PODSCRIBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
