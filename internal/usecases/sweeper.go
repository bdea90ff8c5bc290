package usecases

import (
	"context"
	"log/slog"
	"time"

	"intakehub/internal/entities"
	"intakehub/internal/infrastructure"
	"intakehub/internal/interfaces"
)

const (
	sweepStallAfter = 30 * time.Second
	sweepBatchSize  = 100
)

// Sweeper reconciles auto-execute tasks whose dispatch never reached the
// queue. Retries back off exponentially from the stall window and stop at
// MaxRetries, after which the task is failed for an operator to inspect.
type Sweeper struct {
	tasks      interfaces.TaskStore
	dispatcher *Dispatcher
	bus        interfaces.EventBus
	now        func() time.Time
}

func NewSweeper(tasks interfaces.TaskStore, dispatcher *Dispatcher, bus interfaces.EventBus, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{tasks: tasks, dispatcher: dispatcher, bus: bus, now: now}
}

// Sweep runs one reconciliation pass and returns how many tasks were
// re-dispatched.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()
	stalled, err := s.tasks.ListStalled(ctx, now.Add(-sweepStallAfter), sweepBatchSize)
	if err != nil {
		slog.Error("sweep query failed", "err", err)
		return 0
	}

	recovered := 0
	for _, task := range stalled {
		// Exponential backoff: 30s, 60s, 120s since the last update.
		backoff := sweepStallAfter << task.RetryCount
		if now.Sub(task.UpdatedAt) < backoff {
			continue
		}

		actions := actionsFromMetadata(task.AIMetadata)
		if len(actions) == 0 {
			s.fail(ctx, task, "no dispatchable actions recorded")
			continue
		}

		count, err := s.tasks.IncrementRetry(ctx, task.ID)
		if err != nil {
			slog.Error("sweep retry bump failed", "task_id", task.ID, "err", err)
			continue
		}
		task.RetryCount = count

		if _, err := s.dispatcher.Dispatch(ctx, task, actions); err != nil {
			slog.Warn("sweep re-dispatch failed", "task_id", task.ID, "retry_count", count, "err", err)
			if count >= entities.MaxRetries {
				s.fail(ctx, task, "retry limit exceeded")
			}
			continue
		}

		slog.Info("sweep re-dispatched task", "task_id", task.ID, "retry_count", count)
		recovered++
	}
	return recovered
}

func (s *Sweeper) fail(ctx context.Context, task *entities.AgentTask, reason string) {
	task.ErrorMessage = reason
	if err := s.tasks.RecordDecision(ctx, task); err != nil {
		slog.Error("sweep record failed", "task_id", task.ID, "err", err)
	}
	if err := s.tasks.UpdateStatus(ctx, task.ID, entities.StatusFailed); err != nil {
		slog.Error("sweep fail transition rejected", "task_id", task.ID, "err", err)
		return
	}
	task.Status = entities.StatusFailed
	s.bus.PublishAsync(infrastructure.EventAutomationFailed, map[string]interface{}{
		"task_id": task.ID, "error": reason, "retry_count": task.RetryCount,
	})
}
