package interfaces

import (
	"context"
	"time"

	"intakehub/internal/entities"
)

// AIClient is one configured LLM connection. Implementations must honor the
// context deadline; the classifier wraps every call in a timeout.
type AIClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AIClientFactory builds an AIClient from per-org provider settings.
type AIClientFactory func(cfg entities.OrgConfig, dryRun bool) AIClient

// TaskStore persists AgentTask records and maintains the principal → open
// task index in the same transaction as task writes.
type TaskStore interface {
	Create(ctx context.Context, task *entities.AgentTask) error
	Get(ctx context.Context, id string) (*entities.AgentTask, error)
	List(ctx context.Context, orgID string, status entities.TaskStatus, limit int) ([]*entities.AgentTask, error)
	// FindOpenTask returns the newest open (PENDING or AWAITING_INPUT) task
	// for a principal, or a NotFoundError.
	FindOpenTask(ctx context.Context, principal string) (*entities.AgentTask, error)
	// UpdateStatus applies a state transition, rejecting moves the state
	// machine forbids and setting completed_at on terminal states.
	UpdateStatus(ctx context.Context, id string, to entities.TaskStatus) error
	// RecordDecision attaches classifier output and routing metadata.
	RecordDecision(ctx context.Context, task *entities.AgentTask) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	CountByStatus(ctx context.Context, orgID string) (map[entities.TaskStatus]int, error)
	// ListStalled returns open auto-execute tasks with no queued jobs whose
	// last update is older than the cutoff.
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*entities.AgentTask, error)
}

// QuotaStore enforces and records monthly per-org usage.
type QuotaStore interface {
	// Enforce returns a *entities.QuotaExceededError when the org is at or
	// over its monthly limit. Callers must reject admission, not proceed.
	Enforce(ctx context.Context, orgID, quotaType string) error
	Increment(ctx context.Context, orgID, quotaType string) error
	Usage(ctx context.Context, orgID, quotaType string) (used, limit int, err error)
}

// JobQueue is the durable boundary between the dispatcher and external
// workers. Enqueue of an already-queued job id is a no-op.
type JobQueue interface {
	Enqueue(ctx context.Context, job *entities.Job) error
	ListByTask(ctx context.Context, taskID string) ([]*entities.Job, error)
}

// OrgStore reads and writes per-organization configuration.
type OrgStore interface {
	Get(ctx context.Context, orgID string) (*entities.OrgConfig, error)
	Save(ctx context.Context, cfg *entities.OrgConfig) error
}

// CounterWindow is one active fixed rate-limit window for a principal.
type CounterWindow struct {
	Count   int
	ResetAt time.Time
}

// CounterStore is the keyed-counter abstraction behind the rate limiter.
// A single-node deployment backs it with an in-process map; a multi-node
// deployment can substitute a shared counter store without changing call
// sites.
type CounterStore interface {
	// Increment bumps the counter for key, starting a fresh window of the
	// given duration when none is active or the active one has elapsed.
	Increment(key string, window time.Duration) CounterWindow
	Reset(key string)
}

// EventBus is in-process, at-least-once, best-effort notification. It is
// not a durable event log.
type EventBus interface {
	Subscribe(event string, fn func(payload map[string]interface{}))
	Publish(event string, payload map[string]interface{})
	PublishAsync(event string, payload map[string]interface{})
}
