package entities

import "time"

// TaskStatus is the lifecycle state of an AgentTask.
type TaskStatus string

const (
	StatusPending       TaskStatus = "PENDING"
	StatusProcessing    TaskStatus = "PROCESSING"
	StatusAwaitingInput TaskStatus = "AWAITING_INPUT"
	StatusScheduled     TaskStatus = "SCHEDULED"
	StatusCompleted     TaskStatus = "COMPLETED"
	StatusFailed        TaskStatus = "FAILED"
	StatusCancelled     TaskStatus = "CANCELLED"
)

// Terminal reports whether no further status transitions are permitted.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Open reports whether the task can still absorb a quick reply from its principal.
func (s TaskStatus) Open() bool {
	return s == StatusPending || s == StatusAwaitingInput
}

// CanTransition reports whether the state machine permits moving from one
// status to another. Terminal states are frozen.
func CanTransition(from, to TaskStatus) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled || to == StatusFailed
	case StatusProcessing:
		return to == StatusAwaitingInput || to == StatusScheduled ||
			to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusAwaitingInput:
		return to == StatusProcessing || to == StatusCancelled || to == StatusFailed
	case StatusScheduled:
		return to == StatusProcessing || to == StatusCompleted ||
			to == StatusFailed || to == StatusCancelled
	}
	return false
}

// TaskType classifies what an AgentTask is asking the system to do.
type TaskType string

const (
	TaskScheduleMeeting   TaskType = "SCHEDULE_MEETING"
	TaskRescheduleMeeting TaskType = "RESCHEDULE_MEETING"
	TaskCancelMeeting     TaskType = "CANCEL_MEETING"
	TaskCheckAvailability TaskType = "CHECK_AVAILABILITY"
	TaskCreateTask        TaskType = "CREATE_TASK"
	TaskUpdateTask        TaskType = "UPDATE_TASK"
	TaskInquiry           TaskType = "INQUIRY"
	TaskReminder          TaskType = "REMINDER"
	TaskFollowUp          TaskType = "FOLLOW_UP"
	TaskUnknown           TaskType = "UNKNOWN"
)

// ValidTaskType reports whether t is a known task type.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TaskScheduleMeeting, TaskRescheduleMeeting, TaskCancelMeeting,
		TaskCheckAvailability, TaskCreateTask, TaskUpdateTask,
		TaskInquiry, TaskReminder, TaskFollowUp, TaskUnknown:
		return true
	}
	return false
}

// Priority bounds. DefaultPriority is the mid value used when no keyword
// bucket matches.
const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

// ClampPriority forces p into [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// MaxRetries bounds reprocessing attempts for a task. Exceeding it marks
// the task FAILED.
const MaxRetries = 3

// AgentTask is the durable record of one admitted input and its lifecycle.
type AgentTask struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id,omitempty"`
	OrgID        string                 `json:"org_id,omitempty"`
	Principal    string                 `json:"principal,omitempty"`
	Source       InputSource            `json:"source"`
	SourceID     string                 `json:"source_id,omitempty"`
	RawContent   string                 `json:"raw_content"`
	TaskType     TaskType               `json:"task_type"`
	Priority     int                    `json:"priority"`
	Status       TaskStatus             `json:"status"`
	Entities     map[string]interface{} `json:"entities,omitempty"`
	AIMetadata   map[string]interface{} `json:"ai_metadata,omitempty"`
	Resolution   string                 `json:"resolution,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	RetryCount   int                    `json:"retry_count"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	ProcessedAt  *time.Time             `json:"processed_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}
