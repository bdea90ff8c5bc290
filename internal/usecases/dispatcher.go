package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
)

// Dispatcher turns approved actions into queued jobs. Job identity derives
// from the task id, so re-dispatching the same task is idempotent at the
// queue boundary. Enqueue failures are logged and surfaced as a
// DispatchError; the task record is never failed because of them.
type Dispatcher struct {
	queue interfaces.JobQueue
}

func NewDispatcher(queue interfaces.JobQueue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// Dispatch enqueues one job per action on the lane selected by the task
// priority. It returns how many jobs were enqueued; on queue failure the
// remaining actions are skipped and the error returned for the caller to
// absorb.
func (d *Dispatcher) Dispatch(ctx context.Context, task *entities.AgentTask, actions []entities.AgentAction) (int, error) {
	lane := LaneFor(task.Priority)
	for i, action := range actions {
		job := &entities.Job{
			ID:         fmt.Sprintf("%s:%d", task.ID, i),
			TaskID:     task.ID,
			Lane:       lane,
			ActionType: action.Type,
			Params:     action.Params,
			DelayMs:    action.DelayMs,
		}
		if err := d.queue.Enqueue(ctx, job); err != nil {
			derr := &entities.DispatchError{TaskID: task.ID, Err: err}
			slog.Error("enqueue failed, task left for sweep",
				"task_id", task.ID, "job_id", job.ID, "lane", lane, "err", err)
			return i, derr
		}
		slog.Info("job enqueued", "task_id", task.ID, "job_id", job.ID, "lane", lane, "action", action.Type)
	}
	return len(actions), nil
}
