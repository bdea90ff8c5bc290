package entities

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports malformed input. It fails fast, before any side
// effects, and enumerates the offending fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, field+": "+reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// AuthError reports a bad or missing signature or principal.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth failed: " + e.Reason
}

// QuotaExceededError is raised fail-closed before task creation when an
// organization is over its monthly budget.
type QuotaExceededError struct {
	QuotaType string `json:"quotaType"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Plan      string `json:"plan"`
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s used %d of %d (plan %s)", e.QuotaType, e.Used, e.Limit, e.Plan)
}

// RateLimitError is raised when a principal exhausts its fixed window.
type RateLimitError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: limit %d, resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// ClassificationError reports that the LLM call failed or its response was
// unparsable. The pipeline absorbs it into a degraded UNKNOWN decision.
type ClassificationError struct {
	Reason string
	Raw    string
}

func (e *ClassificationError) Error() string {
	return "classification failed: " + e.Reason
}

// DispatchError reports that the job queue was unavailable. The task record
// is left untouched so a sweep can reconcile later.
type DispatchError struct {
	TaskID string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed for task %s: %v", e.TaskID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// NotFoundError reports a missing task or record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ForbiddenError reports an access-control denial on an existing record.
type ForbiddenError struct {
	Kind string
	ID   string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access to %s %s denied", e.Kind, e.ID)
}
