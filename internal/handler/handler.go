package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/podscribe/internal/config"
	"github.com/podscribe/internal/jobs"
	"github.com/podscribe/internal/validate"
	"github.com/podscribe/internal/version"
	"github.com/podscribe/pkg/logger"
)

// Handler handles HTTP requests.
type Handler struct {
	dispatcher *jobs.Dispatcher
	store      *jobs.Store
	watcher    *jobs.Watcher
	whisper    config.WhisperConfig
	limiter    *rate.Limiter
}

// New creates a new Handler. A submission rate limit is applied when the
// server config sets one.
func New(dispatcher *jobs.Dispatcher, store *jobs.Store, watcher *jobs.Watcher, cfg *config.Config) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		store:      store,
		watcher:    watcher,
		whisper:    cfg.Whisper,
	}

	if rpm := cfg.Server.RateLimitRPM; rpm > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
		logger.Infof("Submission rate limit: %d RPM", rpm)
	}

	return h
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.GET("/version", h.Version)

		api.POST("/transcribe", h.Transcribe)

		api.GET("/jobs", h.GetStats)
		api.GET("/jobs/:id", h.GetJob)
		api.GET("/jobs/:id/events", h.StreamJob)
	}
}

// Health returns static readiness info for monitoring.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"model_loaded":  true,
		"whisper_model": h.whisper.Model,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Version returns service version.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.Version})
}

// TranscribeRequest is the job submission body.
type TranscribeRequest struct {
	URL string `json:"url" binding:"required"`
}

// Transcribe accepts a media URL and dispatches a transcription job. The
// response carries only the job id; pipeline outcomes surface exclusively
// through the job's event stream.
func (h *Handler) Transcribe(c *gin.Context) {
	if h.limiter != nil && !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many submissions, slow down"})
		return
	}

	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	if !validate.IsSafeURL(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or unsupported URL"})
		return
	}

	// The worker must outlive this request, so detach its context from
	// the request's cancellation.
	jobID, err := h.dispatcher.Submit(context.WithoutCancel(c.Request.Context()), req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// GetJob returns the current snapshot of a job.
func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetStats returns job counts by state.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// StreamJob opens a server-sent event stream of job state snapshots. One
// JSON object is sent per event; the stream ends after the terminal event
// (or after a single not-found event for unknown ids).
func (h *Handler) StreamJob(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events := h.watcher.Watch(c.Request.Context(), c.Param("id"))

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("message", ev)
		return true
	})
}
