package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"perfdash-backend/internal/jobs"
)

// maxTaskWait bounds the long-poll of GetTask.
const maxTaskWait = 30 * time.Second

func (h *Handler) ListAnalyses(c *gin.Context) {
	analyses, err := h.analyses.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analyses)
}

func (h *Handler) GetAnalysis(c *gin.Context) {
	a, err := h.analyses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func accepted(c *gin.Context, task *jobs.Task, body gin.H) {
	body["task"] = task.Info()
	c.Header("Location", "/api/tasks/"+task.ID)
	c.JSON(http.StatusAccepted, body)
}

// RegenerateAnalysis flips the analysis to regenerating and answers with the
// task that completes it.
func (h *Handler) RegenerateAnalysis(c *gin.Context) {
	a, task, err := h.analyses.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	accepted(c, task, gin.H{"analysis": a})
}

// CancelRegeneration stops a pending regeneration and returns the restored
// analysis.
func (h *Handler) CancelRegeneration(c *gin.Context) {
	a, err := h.analyses.CancelRegeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// StartAssistant asks the assistant for an analysis.
func (h *Handler) StartAssistant(c *gin.Context) {
	task, err := h.assistant.Start()
	if err != nil {
		h.fail(c, err)
		return
	}
	accepted(c, task, gin.H{})
}

// GetTask returns a task. With ?wait=<duration> it blocks until the task
// finishes or the wait elapses, whichever comes first.
func (h *Handler) GetTask(c *gin.Context) {
	task, ok := h.runner.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	if raw := c.Query("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "wait must be a non-negative duration"})
			return
		}
		if wait > maxTaskWait {
			wait = maxTaskWait
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		_ = task.Wait(ctx)
	}

	c.JSON(http.StatusOK, task.Info())
}
