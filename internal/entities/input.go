package entities

import "time"

// InputSource identifies the channel an inbound signal arrived on.
type InputSource string

const (
	SourceForm     InputSource = "FORM"
	SourceEmail    InputSource = "EMAIL"
	SourceSMS      InputSource = "SMS"
	SourceAPI      InputSource = "API"
	SourceChat     InputSource = "CHAT"
	SourceVoice    InputSource = "VOICE"
	SourceWebhook  InputSource = "WEBHOOK"
	SourceWorker   InputSource = "WORKER"
	SourceSchedule InputSource = "SCHEDULE"
)

// MaxContentLength caps normalized content so downstream classification
// cost stays bounded. Longer content is truncated with a marker.
const MaxContentLength = 10000

// TruncationMarker is appended when RawContent was cut at MaxContentLength.
const TruncationMarker = "... [truncated]"

// ValidSource reports whether s is one of the known input sources.
func ValidSource(s InputSource) bool {
	switch s {
	case SourceForm, SourceEmail, SourceSMS, SourceAPI, SourceChat,
		SourceVoice, SourceWebhook, SourceWorker, SourceSchedule:
		return true
	}
	return false
}

// InputMetadata carries sender identity and routing hints alongside the content.
type InputMetadata struct {
	SenderEmail  string   `json:"sender_email,omitempty"`
	SenderPhone  string   `json:"sender_phone,omitempty"`
	SenderIP     string   `json:"sender_ip,omitempty"`
	Subject      string   `json:"subject,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	PriorityHint int      `json:"priority_hint,omitempty"`
}

// AgentInput is the canonical normalized form of one inbound signal.
// It is ephemeral: built per external event, consumed by the pipeline,
// never persisted itself.
type AgentInput struct {
	Source         InputSource            `json:"source"`
	Type           string                 `json:"type"`
	RawContent     string                 `json:"raw_content"`
	StructuredData map[string]interface{} `json:"structured_data,omitempty"`
	Metadata       InputMetadata          `json:"metadata"`
	Timestamp      time.Time              `json:"timestamp"`
	CorrelationID  string                 `json:"correlation_id"`
}

// Principal returns the identity used for rate limiting and open-task
// matching: user id when known, else phone, else email, else IP.
func (in AgentInput) Principal() string {
	if v, ok := in.StructuredData["user_id"].(string); ok && v != "" {
		return v
	}
	if in.Metadata.SenderPhone != "" {
		return in.Metadata.SenderPhone
	}
	if in.Metadata.SenderEmail != "" {
		return in.Metadata.SenderEmail
	}
	return in.Metadata.SenderIP
}

// CalendarEvent is structured meeting data extracted from an ICS attachment.
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location,omitempty"`
	Organizer   string    `json:"organizer,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	Status      string    `json:"status,omitempty"`
	Sequence    int       `json:"sequence"`
	Method      string    `json:"method,omitempty"`
}
