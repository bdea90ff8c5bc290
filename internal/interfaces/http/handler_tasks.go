package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"intakehub/internal/entities"
)

// ListTasks returns the caller's org tasks, newest first, optionally
// filtered by status.
func (h *Handler) ListTasks(c *gin.Context) {
	orgID := currentOrgID(c)

	status := entities.TaskStatus(c.Query("status"))
	if status != "" && !validStatusFilter(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	tasks, err := h.tasks.List(c.Request.Context(), orgID, status, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

// GetTask returns one task, org-scoped.
func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if orgID := currentOrgID(c); orgID != "" && task.OrgID != orgID {
		respondError(c, &entities.ForbiddenError{Kind: "task", ID: task.ID})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ApproveTask resolves a task awaiting approval: its stored actions are
// dispatched and processing resumes.
func (h *Handler) ApproveTask(c *gin.Context) {
	task, err := h.pipeline.Approve(c.Request.Context(), c.Param("id"), currentOrgID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved", "task": task})
}

// RejectTask cancels a task awaiting approval.
func (h *Handler) RejectTask(c *gin.Context) {
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&payload) // reason is optional

	task, err := h.pipeline.RejectTask(c.Request.Context(), c.Param("id"), currentOrgID(c), SanitizeString(payload.Reason))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected", "task": task})
}

func validStatusFilter(s entities.TaskStatus) bool {
	switch s {
	case entities.StatusPending, entities.StatusProcessing, entities.StatusAwaitingInput,
		entities.StatusScheduled, entities.StatusCompleted, entities.StatusFailed, entities.StatusCancelled:
		return true
	}
	return false
}
