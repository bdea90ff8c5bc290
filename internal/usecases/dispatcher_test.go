package usecases

import (
	"context"
	"errors"
	"testing"

	"intakehub/internal/entities"
)

func TestDispatchDerivesJobIDs(t *testing.T) {
	queue := &fakeQueue{}
	d := NewDispatcher(queue)

	task := &entities.AgentTask{ID: "task-1", Priority: 5}
	actions := []entities.AgentAction{
		{Type: entities.ActionSendSMS, Priority: 5},
		{Type: entities.ActionScheduleMeeting, Priority: 5},
	}

	n, err := d.Dispatch(context.Background(), task, actions)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if n != 2 || len(queue.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(queue.jobs))
	}
	if queue.jobs[0].ID != "task-1:0" || queue.jobs[1].ID != "task-1:1" {
		t.Errorf("job ids = %q, %q", queue.jobs[0].ID, queue.jobs[1].ID)
	}
	for _, job := range queue.jobs {
		if job.Lane != entities.LaneUrgent {
			t.Errorf("lane = %q, want urgent for priority 5", job.Lane)
		}
	}
}

func TestDispatchIsIdempotent(t *testing.T) {
	queue := &fakeQueue{}
	d := NewDispatcher(queue)

	task := &entities.AgentTask{ID: "task-1", Priority: 3}
	actions := []entities.AgentAction{{Type: entities.ActionSendEmail}}

	d.Dispatch(context.Background(), task, actions)
	d.Dispatch(context.Background(), task, actions)

	if len(queue.jobs) != 1 {
		t.Errorf("jobs = %d, re-dispatch must not duplicate", len(queue.jobs))
	}
}

func TestDispatchSurfacesQueueFailure(t *testing.T) {
	queue := &fakeQueue{failing: true}
	d := NewDispatcher(queue)

	task := &entities.AgentTask{ID: "task-1", Priority: 3}
	n, err := d.Dispatch(context.Background(), task, []entities.AgentAction{{Type: entities.ActionSendEmail}})

	var derr *entities.DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("got %v, want DispatchError", err)
	}
	if derr.TaskID != "task-1" {
		t.Errorf("task id = %q", derr.TaskID)
	}
	if n != 0 {
		t.Errorf("enqueued = %d, want 0", n)
	}
}
