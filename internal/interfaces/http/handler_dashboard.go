package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intakehub/internal/entities"
)

// GetDashboardStats returns task counts by status plus quota usage for the
// authenticated operator's org.
func (h *Handler) GetDashboardStats(c *gin.Context) {
	orgID := currentOrgID(c)

	counts, err := h.tasks.CountByStatus(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}

	open := counts[entities.StatusPending] + counts[entities.StatusAwaitingInput]
	response := gin.H{
		"tasks":             counts,
		"open_count":        open,
		"awaiting_approval": counts[entities.StatusAwaitingInput],
	}

	if orgID != "" {
		used, limit, err := h.quotas.Usage(c.Request.Context(), orgID, entities.QuotaTypeIntake)
		if err == nil {
			response["quota"] = gin.H{
				"quota_type": entities.QuotaTypeIntake,
				"used":       used,
				"limit":      limit,
				"period":     time.Now().UTC().Format("2006-01"),
			}
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetOrgConfig returns one org's configuration (admin only).
func (h *Handler) GetOrgConfig(c *gin.Context) {
	cfg, err := h.orgs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// SaveOrgConfig upserts an org's configuration (admin only). Saving
// invalidates any cached classifier clients for the org.
func (h *Handler) SaveOrgConfig(c *gin.Context) {
	id := c.Param("id")
	if !ValidSlug(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid org id"})
		return
	}

	var cfg entities.OrgConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !ValidateLength(cfg.SystemPrompt, 0, MaxPromptLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "System prompt too long"})
		return
	}
	if cfg.Thresholds.AutoExecute == 0 && cfg.Thresholds.RequireApproval == 0 {
		cfg.Thresholds = entities.DefaultThresholds
	}
	if cfg.Thresholds.RequireApproval > cfg.Thresholds.AutoExecute {
		c.JSON(http.StatusBadRequest, gin.H{"error": "require_approval threshold must not exceed auto_execute"})
		return
	}

	cfg.ID = id
	cfg.SystemPrompt = SanitizeString(cfg.SystemPrompt)
	cfg.UpdatedAt = time.Now()

	if err := h.orgs.Save(c.Request.Context(), &cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "org": cfg})
}
