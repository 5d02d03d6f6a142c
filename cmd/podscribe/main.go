package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/podscribe/internal/client/apprise"
	"github.com/podscribe/internal/config"
	"github.com/podscribe/internal/fileops"
	"github.com/podscribe/internal/handler"
	"github.com/podscribe/internal/jobs"
	"github.com/podscribe/internal/service/pipeline"
	"github.com/podscribe/internal/version"
	"github.com/podscribe/pkg/logger"
)

func main() {
	isDev := os.Getenv("ENV") != "production"
	logger.Init(isDev)
	defer logger.Sync()

	version.PrintBanner(nil)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	logger.Infof("Loading config: %s", configPath)
	cfgMgr, err := config.NewManager(configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	defer cfgMgr.Stop()
	cfg := cfgMgr.Get()

	if err := fileops.EnsureDir(cfg.Fetch.UploadDir); err != nil {
		logger.Fatalf("Directory setup error: %v", err)
	}

	var notifier pipeline.Notifier
	if cfg.Apprise.Enabled {
		notifier = apprise.NewClient(cfg.Apprise)
		logger.Infof("Notifications: enabled (key=%s)", cfg.Apprise.Key)
	} else {
		logger.Info("Notifications: disabled")
	}

	store := jobs.NewStore()
	worker := pipeline.New(cfg, store, notifier)
	dispatcher := jobs.NewDispatcher(store, worker)
	watcher := jobs.NewWatcher(store, time.Duration(cfg.Jobs.StreamPollMs)*time.Millisecond)

	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	h := handler.New(dispatcher, store, watcher, cfg)
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Write timeout stays unset: progress streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	logger.Info("")
	logger.Infof("Whisper model: %s", cfg.Whisper.Model)
	logger.Infof("Staging dir:   %s", cfg.Fetch.UploadDir)
	logger.Info("")
	logger.Infof("API server: http://localhost:%d", cfg.Server.Port)
	logger.Infof("   POST /api/v1/transcribe       - submit a media URL")
	logger.Infof("   GET  /api/v1/jobs/:id/events  - stream job progress (SSE)")
	logger.Infof("   GET  /api/v1/jobs/:id         - job snapshot")
	logger.Info("")
	logger.Info("Ready! Waiting for transcription requests...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}

	logger.Info("Goodbye!")
}

// requestLogger returns a gin middleware for logging HTTP requests.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if path != "/api/v1/health" || status >= 400 {
			logger.Debugf("HTTP %s %s -> %d (%v)", c.Request.Method, path, status, time.Since(start))
		}
	}
}
