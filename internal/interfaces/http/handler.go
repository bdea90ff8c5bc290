package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
	"intakehub/internal/usecases"
)

type Handler struct {
	pipeline   *usecases.Pipeline
	normalizer *usecases.Normalizer
	tasks      interfaces.TaskStore
	quotas     interfaces.QuotaStore
	orgs       interfaces.OrgStore

	defaultOrgID  string
	twilioToken   string
	webhookSecret string
}

type HandlerConfig struct {
	DefaultOrgID  string
	TwilioToken   string
	WebhookSecret string
}

func NewHandler(pipeline *usecases.Pipeline, normalizer *usecases.Normalizer,
	tasks interfaces.TaskStore, quotas interfaces.QuotaStore, orgs interfaces.OrgStore, cfg HandlerConfig) *Handler {
	return &Handler{
		pipeline:      pipeline,
		normalizer:    normalizer,
		tasks:         tasks,
		quotas:        quotas,
		orgs:          orgs,
		defaultOrgID:  cfg.DefaultOrgID,
		twilioToken:   cfg.TwilioToken,
		webhookSecret: cfg.WebhookSecret,
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, auth *usecases.AuthUsecase, middleware *Middleware) {
	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20)) // 1MB max request size
	r.Use(middleware.CORSMiddleware())

	// Public webhook routes (signature-verified per channel)
	r.POST("/webhook/sms", h.HandleSMSWebhook)
	r.POST("/webhook/email", h.HandleEmailWebhook)
	r.POST("/webhook/generic", h.HandleGenericWebhook)
	r.POST("/webhook/worker", h.HandleWorkerCallback)

	// Public Auth Routes
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		authGroup.POST("/register", func(c *gin.Context) {
			var regReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
				OrgID    string `json:"org_id"`
			}
			if err := c.ShouldBindJSON(&regReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			// Validate inputs
			if !ValidSlug(regReq.Username) || len(regReq.Password) < 6 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
				return
			}
			if err := auth.Register(c.Request.Context(), regReq.Username, regReq.Password, regReq.OrgID); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"status": "registered"})
		})
	}

	// Protected API Routes
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		api.POST("/agent/process", h.ProcessAgentInput)

		api.GET("/tasks", h.ListTasks)
		api.GET("/tasks/:id", h.GetTask)
		api.POST("/tasks/:id/approve", h.ApproveTask)
		api.POST("/tasks/:id/reject", h.RejectTask)

		api.GET("/dashboard/stats", h.GetDashboardStats)
	}

	// Admin-only Routes
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/orgs/:id", h.GetOrgConfig)
		admin.PUT("/orgs/:id", h.SaveOrgConfig)
	}
}

// ProcessAgentInput is the unified entry point: any authenticated caller can
// submit a normalized-shape payload from any channel.
func (h *Handler) ProcessAgentInput(c *gin.Context) {
	var req struct {
		Source         string                 `json:"source"`
		Type           string                 `json:"type"`
		Content        string                 `json:"content"`
		StructuredData map[string]interface{} `json:"structuredData"`
		Metadata       entities.InputMetadata `json:"metadata"`
		CorrelationID  string                 `json:"correlationId"`
		Options        struct {
			DryRun                   bool     `json:"dryRun"`
			ForceApproval            bool     `json:"forceApproval"`
			AutoExecuteThreshold     *float64 `json:"autoExecuteThreshold"`
			RequireApprovalThreshold *float64 `json:"requireApprovalThreshold"`
		} `json:"options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Source == "" {
		req.Source = string(entities.SourceAPI)
	}
	if req.Metadata.SenderIP == "" {
		req.Metadata.SenderIP = c.ClientIP()
	}

	input, err := h.normalizer.Normalize(entities.InputSource(req.Source), req.Type,
		req.Content, req.StructuredData, req.Metadata, req.CorrelationID)
	if err != nil {
		respondError(c, err)
		return
	}

	opts := usecases.ProcessOptions{
		OrgID:                    currentOrgID(c),
		UserID:                   currentUserID(c),
		DryRun:                   req.Options.DryRun,
		ForceApproval:            req.Options.ForceApproval,
		AutoExecuteThreshold:     req.Options.AutoExecuteThreshold,
		RequireApprovalThreshold: req.Options.RequireApprovalThreshold,
	}

	res, err := h.pipeline.Process(c.Request.Context(), input, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	setRateLimitHeaders(c, res.RateLimit)
	c.JSON(http.StatusOK, gin.H{
		"task": res.Task,
		"decision": gin.H{
			"intent":     res.Decision.Intent,
			"confidence": res.Decision.Confidence,
			"reasoning":  res.Decision.Reasoning,
			"verdict":    res.Verdict,
			"actions":    res.Decision.Actions,
			"warnings":   res.Decision.Warnings,
		},
		"executionStatus": res.ExecutionStatus,
		"correlationId":   input.CorrelationID,
	})
}

// currentUserID extracts the numeric user_id claim as a string principal
func currentUserID(c *gin.Context) string {
	raw, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	if id, ok := raw.(float64); ok && id > 0 {
		return strconv.FormatFloat(id, 'f', 0, 64)
	}
	return ""
}

func setRateLimitHeaders(c *gin.Context, rl entities.RateLimitResult) {
	if rl.Limit == 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
}

// respondError maps the typed error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with no internals leaked.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *entities.ValidationError
		authErr       *entities.AuthError
		forbiddenErr  *entities.ForbiddenError
		notFoundErr   *entities.NotFoundError
		quotaErr      *entities.QuotaExceededError
		rateErr       *entities.RateLimitError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": validationErr.Fields})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Reason})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Kind + " not found"})
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Quota exceeded", "quota": quotaErr})
	case errors.As(err, &rateErr):
		retryAfter := rateErr.ResetAt.Unix() - time.Now().Unix()
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("X-RateLimit-Reset", strconv.FormatInt(rateErr.ResetAt.Unix(), 10))
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded", "reset": rateErr.ResetAt.Unix()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
