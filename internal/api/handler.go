package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"perfdash-backend/internal/analysis"
	"perfdash-backend/internal/assistant"
	"perfdash-backend/internal/dashboard"
	"perfdash-backend/internal/importer"
	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/store"
)

// Deps are the services the handlers delegate to.
type Deps struct {
	Store     store.Store
	Analyses  *analysis.Service
	Assistant *assistant.Assistant
	Imports   *importer.Manager
	Dashboard *dashboard.Service
	Runner    *jobs.Runner
	WebPush   *webpush.Options
	Log       *logger.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	analyses  *analysis.Service
	assistant *assistant.Assistant
	imports   *importer.Manager
	dashboard *dashboard.Service
	runner    *jobs.Runner
	webpush   *webpush.Options
	log       *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		store:     d.Store,
		analyses:  d.Analyses,
		assistant: d.Assistant,
		imports:   d.Imports,
		dashboard: d.Dashboard,
		runner:    d.Runner,
		webpush:   d.WebPush,
		log:       log,
	}
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, dashboard.ErrNotFound),
		errors.Is(err, importer.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, importer.ErrInvalidFileType),
		errors.Is(err, importer.ErrMalformedFile),
		errors.Is(err, importer.ErrUnknownField),
		errors.Is(err, importer.ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrIncompleteMapping):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, importer.ErrInvalidState),
		errors.Is(err, analysis.ErrNoPendingRegeneration):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrRunnerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes the error body. Unexpected errors are logged and their text is
// not echoed to the client.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
