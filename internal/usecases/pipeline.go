package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"intakehub/internal/entities"
	"intakehub/internal/infrastructure"
	"intakehub/internal/interfaces"
)

// Execution statuses reported by the unified process endpoint.
const (
	ExecDryRun          = "dry_run"
	ExecExecuted        = "executed"
	ExecPendingApproval = "pending_approval"
)

// AdmissionLimiter is the fixed-window gate consulted before any task is
// created.
type AdmissionLimiter interface {
	Allow(principal string, source entities.InputSource) entities.RateLimitResult
}

// ProcessOptions are the caller-supplied overrides for one process call.
type ProcessOptions struct {
	OrgID                    string
	UserID                   string
	DryRun                   bool
	ForceApproval            bool
	AutoExecuteThreshold     *float64
	RequireApprovalThreshold *float64
}

// ProcessResult is the outcome of one pipeline run.
type ProcessResult struct {
	Task            *entities.AgentTask
	Decision        entities.AgentDecisionResult
	Verdict         entities.Verdict
	ExecutionStatus string
	RateLimit       entities.RateLimitResult
	QuickReply      bool
	Reply           string
}

// Pipeline wires the engine end to end: normalize (done by the caller),
// admit, persist, classify, gate, dispatch, notify. Classification and
// dispatch failures are absorbed into the recorded task; validation, auth,
// quota, and rate-limit failures abort before any persistence.
type Pipeline struct {
	tasks      interfaces.TaskStore
	quotas     interfaces.QuotaStore
	orgs       interfaces.OrgStore
	limiter    AdmissionLimiter
	classifier *Classifier
	dispatcher *Dispatcher
	bus        interfaces.EventBus
}

func NewPipeline(tasks interfaces.TaskStore, quotas interfaces.QuotaStore, orgs interfaces.OrgStore,
	limiter AdmissionLimiter, classifier *Classifier, dispatcher *Dispatcher, bus interfaces.EventBus) *Pipeline {
	return &Pipeline{
		tasks:      tasks,
		quotas:     quotas,
		orgs:       orgs,
		limiter:    limiter,
		classifier: classifier,
		dispatcher: dispatcher,
		bus:        bus,
	}
}

// Process runs one normalized input through the pipeline.
func (p *Pipeline) Process(ctx context.Context, input entities.AgentInput, opts ProcessOptions) (*ProcessResult, error) {
	principal := opts.UserID
	if principal == "" {
		principal = input.Principal()
	}
	if principal == "" {
		principal = "anonymous"
	}

	// 1. ADMISSION: rate limit, then quick-reply continuity, then quota.
	rl := p.limiter.Allow(principal, input.Source)
	if !rl.Allowed {
		return nil, &entities.RateLimitError{Limit: rl.Limit, ResetAt: rl.ResetAt}
	}

	if qr, conf := quickReplyFrom(input); recognizedQuickReply(qr, conf) {
		if res := p.resumeOpenTask(ctx, principal, qr, input); res != nil {
			res.RateLimit = rl
			return res, nil
		}
	}

	cfg := entities.OrgConfig{Thresholds: entities.DefaultThresholds}
	if opts.OrgID != "" {
		orgCfg, err := p.orgs.Get(ctx, opts.OrgID)
		if err != nil {
			return nil, err
		}
		cfg = *orgCfg
		// Fail closed: no task row exists for an over-quota org.
		if err := p.quotas.Enforce(ctx, opts.OrgID, entities.QuotaTypeIntake); err != nil {
			return nil, err
		}
	}

	// 2. PERSIST the task before the classifier touches the network, so a
	// slow or failing LLM can never lose the input.
	now := time.Now()
	task := &entities.AgentTask{
		ID:         uuid.NewString(),
		UserID:     opts.UserID,
		OrgID:      opts.OrgID,
		Principal:  principal,
		Source:     input.Source,
		SourceID:   sourceIDFrom(input),
		RawContent: input.RawContent,
		TaskType:   intentHintFrom(input),
		Priority:   priorityFor(input),
		Status:     entities.StatusPending,
		Entities:   entitiesFrom(input),
		AIMetadata: map[string]interface{}{"correlation_id": input.CorrelationID},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	if opts.OrgID != "" {
		if err := p.quotas.Increment(ctx, opts.OrgID, entities.QuotaTypeIntake); err != nil {
			slog.Warn("quota increment failed", "org", opts.OrgID, "err", err)
		}
	}
	p.bus.PublishAsync(infrastructure.EventIntakeCreated, map[string]interface{}{
		"task_id": task.ID, "org_id": task.OrgID, "source": string(task.Source),
		"correlation_id": input.CorrelationID,
	})
	if events, ok := input.StructuredData["calendar_events"]; ok {
		p.bus.PublishAsync(infrastructure.EventCalendarCreated, map[string]interface{}{
			"task_id": task.ID, "events": events, "correlation_id": input.CorrelationID,
		})
	}

	// 3. CLASSIFY (absorbed) and GATE.
	decision := p.classifier.Classify(ctx, input, cfg, opts.DryRun)

	thresholds := cfg.Thresholds
	if opts.AutoExecuteThreshold != nil {
		thresholds.AutoExecute = *opts.AutoExecuteThreshold
	}
	if opts.RequireApprovalThreshold != nil {
		thresholds.RequireApproval = *opts.RequireApprovalThreshold
	}
	force := opts.ForceApproval || cfg.ForceApproval || decision.RequiresApproval
	verdict := Route(decision.Confidence, thresholds, force)

	if decision.Intent != entities.TaskUnknown {
		task.TaskType = decision.Intent
	}
	task.AIMetadata["verdict"] = string(verdict)
	task.AIMetadata["confidence"] = decision.Confidence
	task.AIMetadata["reasoning"] = decision.Reasoning
	task.AIMetadata["decision_priority"] = decision.Priority
	task.AIMetadata["model"] = cfg.Model
	if len(decision.Actions) > 0 {
		task.AIMetadata["pending_actions"] = decision.Actions
	}
	if len(decision.Warnings) > 0 {
		task.AIMetadata["warnings"] = decision.Warnings
		task.ErrorMessage = strings.Join(decision.Warnings, "; ")
	}
	if verdict == entities.VerdictReject {
		task.Resolution = "rejected: confidence below approval threshold"
	}
	if err := p.tasks.RecordDecision(ctx, task); err != nil {
		slog.Error("record decision failed", "task_id", task.ID, "err", err)
	}

	slog.Info("decision gated", "task_id", task.ID, "intent", task.TaskType,
		"confidence", decision.Confidence, "priority", task.Priority,
		"verdict", verdict, "lane", LaneFor(task.Priority),
		"correlation_id", input.CorrelationID)

	result := &ProcessResult{
		Task:            task,
		Decision:        decision,
		Verdict:         verdict,
		ExecutionStatus: ExecPendingApproval,
		RateLimit:       rl,
	}
	if opts.DryRun {
		result.ExecutionStatus = ExecDryRun
		return result, nil
	}

	// 4. DISPATCH or park for approval.
	switch verdict {
	case entities.VerdictAutoExecute:
		if _, err := p.dispatcher.Dispatch(ctx, task, decision.Actions); err != nil {
			// Absorbed: task stays visible for the sweep.
			task.ErrorMessage = err.Error()
			p.tasks.RecordDecision(ctx, task)
		}
		result.ExecutionStatus = ExecExecuted
	case entities.VerdictRequiresApproval:
		p.transition(ctx, task, entities.StatusProcessing)
		p.transition(ctx, task, entities.StatusAwaitingInput)
		p.bus.PublishAsync(infrastructure.EventAwaitingApproval, map[string]interface{}{
			"task_id": task.ID, "org_id": task.OrgID,
			"intent": string(task.TaskType), "confidence": decision.Confidence,
		})
	case entities.VerdictReject:
		// Recorded as low-confidence, nothing dispatched.
	}
	return result, nil
}

// Approve resolves a REQUIRES_APPROVAL task: the stored pending actions are
// dispatched through the normal lanes and the task resumes PROCESSING.
func (p *Pipeline) Approve(ctx context.Context, taskID, orgID string) (*entities.AgentTask, error) {
	task, err := p.authorizedTask(ctx, taskID, orgID)
	if err != nil {
		return nil, err
	}
	if task.Status != entities.StatusAwaitingInput {
		return nil, entities.NewValidationError("status", "task is not awaiting approval")
	}

	p.transition(ctx, task, entities.StatusProcessing)
	actions := actionsFromMetadata(task.AIMetadata)
	if _, err := p.dispatcher.Dispatch(ctx, task, actions); err != nil {
		task.ErrorMessage = err.Error()
		p.tasks.RecordDecision(ctx, task)
	}
	return task, nil
}

// RejectTask cancels a task awaiting approval. Already-enqueued jobs run to
// completion; cancellation only prevents new dispatch.
func (p *Pipeline) RejectTask(ctx context.Context, taskID, orgID, reason string) (*entities.AgentTask, error) {
	task, err := p.authorizedTask(ctx, taskID, orgID)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return nil, entities.NewValidationError("status", "task already resolved")
	}
	if reason == "" {
		reason = "rejected by operator"
	}
	task.Resolution = reason
	p.tasks.RecordDecision(ctx, task)
	if err := p.tasks.UpdateStatus(ctx, task.ID, entities.StatusCancelled); err != nil {
		return nil, err
	}
	task.Status = entities.StatusCancelled
	return task, nil
}

// HandleWorkerCallback applies a worker completion report, re-entering the
// pipeline as a WORKER-sourced input.
func (p *Pipeline) HandleWorkerCallback(ctx context.Context, input entities.AgentInput) (*entities.AgentTask, error) {
	payload := input.StructuredData
	taskID, _ := payload["task_id"].(string)
	task, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	p.bus.PublishAsync(infrastructure.EventCallbackReceived, map[string]interface{}{
		"task_id": task.ID, "status": payload["status"], "correlation_id": input.CorrelationID,
	})

	status, _ := payload["status"].(string)

	// Workers deliver at least once. A redelivered report for a task already
	// in the state it describes is acknowledged, not replayed.
	if (status == "completed" && task.Status == entities.StatusCompleted) ||
		(status == "failed" && task.Status == entities.StatusFailed) {
		return task, nil
	}

	switch status {
	case "completed":
		if resolution, _ := payload["resolution"].(string); resolution != "" {
			task.Resolution = resolution
			p.tasks.RecordDecision(ctx, task)
		}
		if task.Status == entities.StatusPending || task.Status == entities.StatusAwaitingInput {
			p.transition(ctx, task, entities.StatusProcessing)
		}
		if err := p.tasks.UpdateStatus(ctx, task.ID, entities.StatusCompleted); err != nil {
			return nil, err
		}
		task.Status = entities.StatusCompleted
		if event, ok := payload["calendar_event"]; ok {
			p.bus.PublishAsync(infrastructure.EventCalendarCreated, map[string]interface{}{
				"task_id": task.ID, "events": event,
			})
		}
		p.bus.PublishAsync(infrastructure.EventAutomationDone, map[string]interface{}{
			"task_id": task.ID, "resolution": task.Resolution,
		})

	case "failed":
		errMsg, _ := payload["error"].(string)
		if errMsg == "" {
			errMsg = "worker reported failure"
		}
		task.ErrorMessage = errMsg
		p.tasks.RecordDecision(ctx, task)

		count, err := p.tasks.IncrementRetry(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.RetryCount = count
		if count >= entities.MaxRetries {
			if err := p.tasks.UpdateStatus(ctx, task.ID, entities.StatusFailed); err == nil {
				task.Status = entities.StatusFailed
			}
		}
		p.bus.PublishAsync(infrastructure.EventAutomationFailed, map[string]interface{}{
			"task_id": task.ID, "error": errMsg, "retry_count": count,
		})
	}
	return task, nil
}

// resumeOpenTask routes a recognized quick reply to the principal's newest
// open task instead of creating a new one.
func (p *Pipeline) resumeOpenTask(ctx context.Context, principal, reply string, input entities.AgentInput) *ProcessResult {
	task, err := p.tasks.FindOpenTask(ctx, principal)
	if err != nil {
		return nil // no open task, fall through to normal intake
	}

	// Transition first: if it fails the task is left untouched and the input
	// falls through to normal intake.
	if err := p.tasks.UpdateStatus(ctx, task.ID, entities.StatusProcessing); err != nil {
		slog.Error("quick reply transition failed", "task_id", task.ID, "err", err)
		return nil
	}
	task.Status = entities.StatusProcessing

	task.TaskType = mapQuickReplyType(reply, task.TaskType)
	task.AIMetadata = withValue(task.AIMetadata, "quick_reply", reply)
	if err := p.tasks.RecordDecision(ctx, task); err != nil {
		slog.Error("quick reply record failed", "task_id", task.ID, "err", err)
	}

	slog.Info("quick reply resumed task", "task_id", task.ID, "reply", reply,
		"correlation_id", input.CorrelationID)
	return &ProcessResult{
		Task:            task,
		Verdict:         entities.VerdictAutoExecute,
		ExecutionStatus: ExecExecuted,
		QuickReply:      true,
		Reply:           quickReplyAck(reply),
	}
}

func (p *Pipeline) authorizedTask(ctx context.Context, taskID, orgID string) (*entities.AgentTask, error) {
	task, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if orgID != "" && task.OrgID != orgID {
		return nil, &entities.ForbiddenError{Kind: "task", ID: taskID}
	}
	return task, nil
}

func (p *Pipeline) transition(ctx context.Context, task *entities.AgentTask, to entities.TaskStatus) {
	if err := p.tasks.UpdateStatus(ctx, task.ID, to); err != nil {
		slog.Error("status transition failed", "task_id", task.ID, "to", to, "err", err)
		return
	}
	task.Status = to
}

func quickReplyFrom(input entities.AgentInput) (string, float64) {
	token, _ := input.StructuredData["quick_reply"].(string)
	conf, _ := input.StructuredData["quick_reply_confidence"].(float64)
	return token, conf
}

func recognizedQuickReply(token string, conf float64) bool {
	return token != "" && token != ReplyOther && token != ReplyHelp && conf >= 0.5
}

func mapQuickReplyType(reply string, current entities.TaskType) entities.TaskType {
	switch reply {
	case ReplyCancel:
		if current == entities.TaskScheduleMeeting || current == entities.TaskRescheduleMeeting {
			return entities.TaskCancelMeeting
		}
	case ReplyReschedule:
		return entities.TaskRescheduleMeeting
	}
	return current
}

func quickReplyAck(reply string) string {
	switch reply {
	case ReplyConfirm:
		return "Thanks, you're confirmed! We'll take it from here."
	case ReplyCancel:
		return "Understood, we're cancelling that for you."
	case ReplyReschedule:
		return "No problem, we'll find a new time and follow up shortly."
	case ReplySelect:
		return "Got it, locking in your selection."
	}
	return "Thanks, we received your reply."
}

func sourceIDFrom(input entities.AgentInput) string {
	for _, key := range []string{"message_sid", "message_id", "source_id"} {
		if v, ok := input.StructuredData[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func intentHintFrom(input entities.AgentInput) entities.TaskType {
	if hint, ok := input.StructuredData["intent_hint"].(string); ok {
		t := entities.TaskType(hint)
		if entities.ValidTaskType(t) {
			return t
		}
	}
	return entities.TaskUnknown
}

// priorityFor scores the raw text; an email subject hint can only raise it.
func priorityFor(input entities.AgentInput) int {
	priority := DetectPriority(input.RawContent)
	if input.Metadata.PriorityHint > priority {
		priority = entities.ClampPriority(input.Metadata.PriorityHint)
	}
	return priority
}

func entitiesFrom(input entities.AgentInput) map[string]interface{} {
	if events, ok := input.StructuredData["calendar_events"]; ok {
		return map[string]interface{}{"calendar_events": events}
	}
	return nil
}

func withValue(m map[string]interface{}, key string, value interface{}) map[string]interface{} {
	if m == nil {
		m = map[string]interface{}{}
	}
	m[key] = value
	return m
}

// actionsFromMetadata rebuilds the pending actions stored with the decision.
// The metadata may hold live structs (same process) or decoded JSON maps
// (read back from the store), so it round-trips through JSON.
func actionsFromMetadata(meta map[string]interface{}) []entities.AgentAction {
	raw, ok := meta["pending_actions"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var actions []entities.AgentAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil
	}
	return actions
}
