package usecases

import (
	"context"
	"testing"
	"time"

	"intakehub/internal/entities"
	"intakehub/internal/infrastructure"
)

func stalledTask(id string, retries int, age time.Duration, now time.Time) *entities.AgentTask {
	return &entities.AgentTask{
		ID:       id,
		Priority: 4,
		Status:   entities.StatusPending,
		AIMetadata: map[string]interface{}{
			"verdict": string(entities.VerdictAutoExecute),
			"pending_actions": []entities.AgentAction{
				{Type: entities.ActionScheduleMeeting, Priority: 4},
			},
		},
		RetryCount: retries,
		UpdatedAt:  now.Add(-age),
	}
}

func TestSweepRedispatchesStalledTask(t *testing.T) {
	now := time.Now()
	tasks := newFakeTaskStore()
	queue := &fakeQueue{}
	bus := &fakeBus{}

	task := stalledTask("task-1", 0, time.Minute, now)
	tasks.Create(context.Background(), task)
	tasks.stalled = []*entities.AgentTask{task}

	s := NewSweeper(tasks, NewDispatcher(queue), bus, func() time.Time { return now })
	if got := s.Sweep(context.Background()); got != 1 {
		t.Fatalf("recovered = %d, want 1", got)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(queue.jobs))
	}
	if queue.jobs[0].ID != "task-1:0" {
		t.Errorf("job id = %q, re-dispatch must reuse derived ids", queue.jobs[0].ID)
	}
	if task.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", task.RetryCount)
	}
}

func TestSweepHonorsBackoff(t *testing.T) {
	now := time.Now()
	tasks := newFakeTaskStore()
	queue := &fakeQueue{}

	// One prior retry means the backoff is 60s; 45s of age is not enough.
	task := stalledTask("task-1", 1, 45*time.Second, now)
	tasks.Create(context.Background(), task)
	tasks.stalled = []*entities.AgentTask{task}

	s := NewSweeper(tasks, NewDispatcher(queue), &fakeBus{}, func() time.Time { return now })
	if got := s.Sweep(context.Background()); got != 0 {
		t.Fatalf("recovered = %d, want 0 inside backoff window", got)
	}
	if len(queue.jobs) != 0 {
		t.Error("dispatched inside backoff window")
	}
	if task.RetryCount != 1 {
		t.Errorf("retry count bumped to %d inside backoff", task.RetryCount)
	}
}

func TestSweepFailsTaskAtRetryLimit(t *testing.T) {
	now := time.Now()
	tasks := newFakeTaskStore()
	queue := &fakeQueue{failing: true}
	bus := &fakeBus{}

	task := stalledTask("task-1", 2, time.Hour, now)
	tasks.Create(context.Background(), task)
	tasks.stalled = []*entities.AgentTask{task}

	s := NewSweeper(tasks, NewDispatcher(queue), bus, func() time.Time { return now })
	s.Sweep(context.Background())

	if task.Status != entities.StatusFailed {
		t.Errorf("status = %v, want FAILED at retry limit", task.Status)
	}
	if task.ErrorMessage != "retry limit exceeded" {
		t.Errorf("error message = %q", task.ErrorMessage)
	}
	if !bus.has(infrastructure.EventAutomationFailed) {
		t.Error("automation:failed not published")
	}
}

func TestSweepFailsTaskWithoutActions(t *testing.T) {
	now := time.Now()
	tasks := newFakeTaskStore()

	task := &entities.AgentTask{
		ID:         "task-1",
		Status:     entities.StatusPending,
		AIMetadata: map[string]interface{}{"verdict": string(entities.VerdictAutoExecute)},
		UpdatedAt:  now.Add(-time.Hour),
	}
	tasks.Create(context.Background(), task)
	tasks.stalled = []*entities.AgentTask{task}

	s := NewSweeper(tasks, NewDispatcher(&fakeQueue{}), &fakeBus{}, func() time.Time { return now })
	s.Sweep(context.Background())

	if task.Status != entities.StatusFailed {
		t.Errorf("status = %v, want FAILED when nothing can be dispatched", task.Status)
	}
}
