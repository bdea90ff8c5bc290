package usecases

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"intakehub/internal/entities"
)

// Normalizer converts source-specific payloads into the canonical
// AgentInput. It is a pure transform: no persistence, no network.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer. The clock is injectable for tests;
// pass nil for time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize validates and canonicalizes a generic inbound payload. Content
// is sanitized and capped at MaxContentLength with a truncation marker; a
// correlation id is generated when absent.
func (n *Normalizer) Normalize(source entities.InputSource, inputType, content string,
	structured map[string]interface{}, meta entities.InputMetadata, correlationID string) (entities.AgentInput, error) {

	fields := map[string]string{}
	if !entities.ValidSource(source) {
		fields["source"] = "unknown source"
	}
	content = sanitizeContent(content)
	if content == "" && len(structured) == 0 {
		fields["content"] = "content or structuredData required"
	}
	if len(fields) > 0 {
		return entities.AgentInput{}, &entities.ValidationError{Fields: fields}
	}

	if len(content) > entities.MaxContentLength {
		cut := entities.MaxContentLength
		// Never split a multi-byte rune at the cap.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + entities.TruncationMarker
	}
	if meta.SenderPhone != "" {
		meta.SenderPhone = NormalizePhone(meta.SenderPhone)
	}
	if meta.SenderEmail != "" {
		meta.SenderEmail = strings.ToLower(strings.TrimSpace(meta.SenderEmail))
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if structured == nil {
		structured = map[string]interface{}{}
	}

	return entities.AgentInput{
		Source:         source,
		Type:           inputType,
		RawContent:     content,
		StructuredData: structured,
		Metadata:       meta,
		Timestamp:      n.now(),
		CorrelationID:  correlationID,
	}, nil
}

// NormalizeSMS canonicalizes a provider SMS webhook: E.164 phone numbers
// plus quick-reply extraction with its confidence. Signature verification
// happens at the HTTP layer before any field is trusted.
func (n *Normalizer) NormalizeSMS(from, to, body, messageSid string) (entities.AgentInput, error) {
	if strings.TrimSpace(from) == "" {
		return entities.AgentInput{}, entities.NewValidationError("From", "missing sender number")
	}

	qr := ExtractQuickReply(body)
	structured := map[string]interface{}{
		"message_sid":            messageSid,
		"to":                     NormalizePhone(to),
		"quick_reply":            qr.Token,
		"quick_reply_confidence": qr.Confidence,
	}
	meta := entities.InputMetadata{SenderPhone: from}

	return n.Normalize(entities.SourceSMS, "sms_message", body, structured, meta, "")
}

// EmailPayload is the inbound email shape accepted by the normalizer.
type EmailPayload struct {
	From       string
	Subject    string
	TextBody   string
	HTMLBody   string
	ICSPayload string // base64 or plain iCalendar attachment
	MessageID  string
}

// NormalizeEmail canonicalizes an inbound email: prefers the plain-text
// body, falls back to stripped HTML, removes trailing signatures, parses
// any ICS attachment, and derives subject-line intent/priority hints.
func (n *Normalizer) NormalizeEmail(p EmailPayload) (entities.AgentInput, error) {
	if strings.TrimSpace(p.From) == "" {
		return entities.AgentInput{}, entities.NewValidationError("from", "missing sender address")
	}

	body := p.TextBody
	if strings.TrimSpace(body) == "" {
		body = StripHTML(p.HTMLBody)
	}
	body = StripSignature(body)

	intent, priority := SubjectHint(p.Subject)
	structured := map[string]interface{}{
		"intent_hint": string(intent),
		"message_id":  p.MessageID,
	}
	if p.ICSPayload != "" {
		if events, err := ParseICS(p.ICSPayload); err == nil {
			structured["calendar_events"] = events
		}
	}

	meta := entities.InputMetadata{
		SenderEmail:  p.From,
		Subject:      p.Subject,
		PriorityHint: priority,
	}
	content := p.Subject
	if body != "" {
		content = p.Subject + "\n\n" + body
	}

	return n.Normalize(entities.SourceEmail, "email_message", content, structured, meta, "")
}

// NormalizeWorkerCallback canonicalizes a worker completion report so it
// re-enters the pipeline as a WORKER-sourced input.
func (n *Normalizer) NormalizeWorkerCallback(payload map[string]interface{}) (entities.AgentInput, error) {
	taskID, _ := payload["task_id"].(string)
	if taskID == "" {
		return entities.AgentInput{}, entities.NewValidationError("task_id", "missing task id")
	}
	status, _ := payload["status"].(string)
	if status != "completed" && status != "failed" {
		return entities.AgentInput{}, entities.NewValidationError("status", "must be completed or failed")
	}

	summary, _ := payload["resolution"].(string)
	return n.Normalize(entities.SourceWorker, "worker_callback", "worker callback: "+status+" "+summary,
		payload, entities.InputMetadata{}, "")
}

func sanitizeContent(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
