package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intakehub/internal/entities"
)

// JobRepository is the durable job queue consumed by external workers. Job
// ids are derived from the owning task, so inserting an already-queued id
// is a no-op rather than a duplicate.
type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Enqueue(ctx context.Context, job *entities.Job) error {
	paramsJSON, err := marshalJSONB(job.Params)
	if err != nil {
		return err
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO agent_jobs (id, task_id, lane, action_type, params, delay_ms, status, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'queued', $7)
		ON CONFLICT (id) DO NOTHING
	`, job.ID, job.TaskID, job.Lane, job.ActionType, paramsJSON, job.DelayMs, job.EnqueuedAt)
	return err
}

func (r *JobRepository) ListByTask(ctx context.Context, taskID string) ([]*entities.Job, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, task_id, lane, action_type, params, delay_ms, status, enqueued_at
		FROM agent_jobs WHERE task_id = $1 ORDER BY enqueued_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*entities.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*entities.Job, error) {
	var j entities.Job
	var paramsJSON []byte
	err := row.Scan(&j.ID, &j.TaskID, &j.Lane, &j.ActionType, &paramsJSON, &j.DelayMs, &j.Status, &j.EnqueuedAt)
	if err != nil {
		return nil, err
	}
	if len(paramsJSON) > 0 {
		json.Unmarshal(paramsJSON, &j.Params)
	}
	return &j, nil
}
