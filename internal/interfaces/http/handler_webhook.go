package http

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intakehub/internal/entities"
	"intakehub/internal/usecases"
)

// HandleSMSWebhook receives provider SMS callbacks (Twilio form contract).
// After the signature check it always answers 200 with a TwiML document:
// internal failures degrade to an apologetic acknowledgment so the provider
// never retries or surfaces an error to the sender.
func (h *Handler) HandleSMSWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		respondTwiML(c, "Sorry, we couldn't read that message. Please try again.")
		return
	}

	signature := c.GetHeader("X-Twilio-Signature")
	if !VerifyTwilioSignature(h.twilioToken, requestURL(c), c.Request.PostForm, signature) {
		c.String(http.StatusForbidden, "Forbidden")
		return
	}

	input, err := h.normalizer.NormalizeSMS(
		c.PostForm("From"), c.PostForm("To"), c.PostForm("Body"), c.PostForm("MessageSid"))
	if err != nil {
		respondTwiML(c, "Sorry, we couldn't read that message. Please try again.")
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), input, usecases.ProcessOptions{OrgID: h.defaultOrgID})
	if err != nil {
		var rateErr *entities.RateLimitError
		if errors.As(err, &rateErr) {
			respondTwiML(c, "You're messaging faster than we can keep up. Please wait a minute and try again.")
			return
		}
		respondTwiML(c, "Sorry, we're having trouble right now. Please try again in a few minutes.")
		return
	}

	respondTwiML(c, smsReplyFor(res))
}

// HandleEmailWebhook receives inbound email from the mail provider as JSON,
// signed with the generic webhook scheme.
func (h *Handler) HandleEmailWebhook(c *gin.Context) {
	body, ok := h.readSignedBody(c)
	if !ok {
		return
	}

	var payload struct {
		From      string `json:"from"`
		Subject   string `json:"subject"`
		TextBody  string `json:"text"`
		HTMLBody  string `json:"html"`
		ICS       string `json:"ics"`
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	input, err := h.normalizer.NormalizeEmail(usecases.EmailPayload{
		From:       payload.From,
		Subject:    payload.Subject,
		TextBody:   payload.TextBody,
		HTMLBody:   payload.HTMLBody,
		ICSPayload: payload.ICS,
		MessageID:  payload.MessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), input, usecases.ProcessOptions{OrgID: h.defaultOrgID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":          res.Task.ID,
		"executionStatus": res.ExecutionStatus,
		"correlationId":   input.CorrelationID,
	})
}

// HandleGenericWebhook receives arbitrary partner callbacks signed with the
// generic HMAC scheme.
func (h *Handler) HandleGenericWebhook(c *gin.Context) {
	body, ok := h.readSignedBody(c)
	if !ok {
		return
	}

	var payload struct {
		Event          string                 `json:"event"`
		Content        string                 `json:"content"`
		StructuredData map[string]interface{} `json:"structuredData"`
		Metadata       entities.InputMetadata `json:"metadata"`
		OrgID          string                 `json:"orgId"`
		CorrelationID  string                 `json:"correlationId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	orgID := payload.OrgID
	if orgID == "" {
		orgID = h.defaultOrgID
	}

	input, err := h.normalizer.Normalize(entities.SourceWebhook, payload.Event,
		payload.Content, payload.StructuredData, payload.Metadata, payload.CorrelationID)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), input, usecases.ProcessOptions{OrgID: orgID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":          res.Task.ID,
		"executionStatus": res.ExecutionStatus,
		"correlationId":   input.CorrelationID,
	})
}

// HandleWorkerCallback receives completion reports from external workers,
// sharing the generic signature scheme.
func (h *Handler) HandleWorkerCallback(c *gin.Context) {
	body, ok := h.readSignedBody(c)
	if !ok {
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	input, err := h.normalizer.NormalizeWorkerCallback(payload)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.pipeline.HandleWorkerCallback(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"taskId": task.ID, "status": task.Status})
}

// readSignedBody reads the raw body and checks the generic webhook
// signature headers against it.
func (h *Handler) readSignedBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return nil, false
	}

	timestamp := c.GetHeader("X-Webhook-Timestamp")
	signature := c.GetHeader("X-Webhook-Signature")
	if !VerifyWebhookSignature(h.webhookSecret, timestamp, body, signature, time.Now()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
		return nil, false
	}
	return body, true
}

// requestURL rebuilds the public URL the provider signed against.
func requestURL(c *gin.Context) string {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

func respondTwiML(c *gin.Context, message string) {
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(message))
	doc := `<?xml version="1.0" encoding="UTF-8"?><Response><Message>` + escaped.String() + `</Message></Response>`
	c.Data(http.StatusOK, "text/xml", []byte(doc))
}

func smsReplyFor(res *usecases.ProcessResult) string {
	if res.QuickReply {
		return res.Reply
	}
	switch res.Verdict {
	case entities.VerdictAutoExecute:
		return "Got it! We're on it and will follow up shortly."
	case entities.VerdictRequiresApproval:
		return "Thanks for reaching out! A team member will review and confirm shortly."
	}
	return "Thanks for your message! Could you share a few more details so we can help?"
}
