package entities

import "time"

// Verdict is the routing outcome of the decision gate.
type Verdict string

const (
	VerdictAutoExecute      Verdict = "AUTO_EXECUTE"
	VerdictRequiresApproval Verdict = "REQUIRES_APPROVAL"
	VerdictReject           Verdict = "REJECT"
)

// ActionType enumerates the executable operations a decision may request.
type ActionType string

const (
	ActionSendEmail         ActionType = "send_email"
	ActionSendSMS           ActionType = "send_sms"
	ActionScheduleMeeting   ActionType = "schedule_meeting"
	ActionRescheduleMeeting ActionType = "reschedule_meeting"
	ActionCancelMeeting     ActionType = "cancel_meeting"
	ActionCreateTask        ActionType = "create_task"
	ActionUpdateTask        ActionType = "update_task"
	ActionTriggerAutomation ActionType = "trigger_automation"
	ActionNotifyOperator    ActionType = "notify_operator"
)

// AgentAction is one executable operation suggested by the classifier.
type AgentAction struct {
	Type                 ActionType             `json:"type"`
	Priority             int                    `json:"priority"`
	RequiresConfirmation bool                   `json:"requires_confirmation"`
	Params               map[string]interface{} `json:"params,omitempty"`
	DelayMs              int64                  `json:"delay_ms,omitempty"`
}

// AgentDecisionResult is the typed output of the intent classifier.
// Confidence is always within [0,1], Priority within [1,5].
type AgentDecisionResult struct {
	Intent           TaskType      `json:"intent"`
	Confidence       float64       `json:"confidence"`
	Reasoning        string        `json:"reasoning,omitempty"`
	RequiresApproval bool          `json:"requires_approval"`
	Priority         int           `json:"priority"`
	Actions          []AgentAction `json:"actions,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	Alternatives     []string      `json:"alternatives,omitempty"`
}

// Thresholds are the per-org confidence boundaries for routing.
type Thresholds struct {
	AutoExecute     float64 `json:"auto_execute"`
	RequireApproval float64 `json:"require_approval"`
}

// DefaultThresholds applies when an org has no configured boundaries.
var DefaultThresholds = Thresholds{AutoExecute: 0.85, RequireApproval: 0.5}

// Dispatch lanes. Priority >= UrgentLanePriority routes to the urgent lane.
const (
	LaneUrgent         = "urgent"
	LaneStandard       = "standard"
	UrgentLanePriority = 4
)

// QuotaTypeIntake is the monthly per-org budget gating inbound processing.
const QuotaTypeIntake = "intake_requests"

// Job is one queued unit of work handed to external workers. Its ID is
// derived from the owning task so re-dispatch is idempotent at the queue
// boundary.
type Job struct {
	ID         string                 `json:"id"`
	TaskID     string                 `json:"task_id"`
	Lane       string                 `json:"lane"`
	ActionType ActionType             `json:"action_type"`
	Params     map[string]interface{} `json:"params,omitempty"`
	DelayMs    int64                  `json:"delay_ms,omitempty"`
	Status     string                 `json:"status"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// RateLimitResult is the outcome of one admission check plus the feedback
// values exposed to callers.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset"`
}

// OrgConfig is the per-organization configuration consulted by the
// classifier and the decision gate.
type OrgConfig struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Plan          string     `json:"plan"`
	MonthlyLimit  int        `json:"monthly_limit"`
	Provider      string     `json:"provider"`
	Model         string     `json:"model"`
	Temperature   float64    `json:"temperature"`
	SystemPrompt  string     `json:"system_prompt,omitempty"`
	Thresholds    Thresholds `json:"thresholds"`
	ForceApproval bool       `json:"force_approval"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
