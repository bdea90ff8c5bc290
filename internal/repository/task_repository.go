package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intakehub/internal/entities"
)

const taskColumns = `id, COALESCE(user_id, ''), COALESCE(org_id, ''), COALESCE(principal, ''),
	source, COALESCE(source_id, ''), COALESCE(raw_content, ''), task_type, priority, status,
	entities, ai_metadata, COALESCE(resolution, ''), COALESCE(error_message, ''),
	retry_count, created_at, updated_at, processed_at, completed_at`

// TaskRepository persists AgentTask rows and keeps the open_tasks index
// (principal -> newest open task) in the same transaction as task writes.
type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts the task and, when it carries a principal, points the
// open-task index at it. Newest creation time wins on conflict.
func (r *TaskRepository) Create(ctx context.Context, task *entities.AgentTask) error {
	entitiesJSON, err := marshalJSONB(task.Entities)
	if err != nil {
		return err
	}
	metaJSON, err := marshalJSONB(task.AIMetadata)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO agent_tasks (id, user_id, org_id, principal, source, source_id, raw_content,
			task_type, priority, status, entities, ai_metadata, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $13)
	`, task.ID, task.UserID, task.OrgID, task.Principal, task.Source, task.SourceID,
		task.RawContent, task.TaskType, task.Priority, task.Status, entitiesJSON, metaJSON, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if task.Principal != "" && task.Status.Open() {
		_, err = tx.Exec(ctx, `
			INSERT INTO open_tasks (principal, task_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (principal) DO UPDATE
			SET task_id = EXCLUDED.task_id, created_at = EXCLUDED.created_at
			WHERE EXCLUDED.created_at >= open_tasks.created_at
		`, task.Principal, task.ID, task.CreatedAt)
		if err != nil {
			return fmt.Errorf("update open-task index: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*entities.AgentTask, error) {
	row := r.db.QueryRow(ctx, "SELECT "+taskColumns+" FROM agent_tasks WHERE id = $1", id)
	task, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, &entities.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) List(ctx context.Context, orgID string, status entities.TaskStatus, limit int) ([]*entities.AgentTask, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + taskColumns + " FROM agent_tasks WHERE org_id = $1"
	args := []interface{}{orgID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FindOpenTask resolves the principal through the open-task index. A stale
// index entry (task no longer open) is treated as not found.
func (r *TaskRepository) FindOpenTask(ctx context.Context, principal string) (*entities.AgentTask, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM agent_tasks
		WHERE id = (SELECT task_id FROM open_tasks WHERE principal = $1)
		  AND status IN ('PENDING', 'AWAITING_INPUT')
	`, principal)
	task, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, &entities.NotFoundError{Kind: "open task", ID: principal}
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus applies one state-machine transition. Terminal transitions
// set completed_at and repoint the open-task index at the principal's next
// open task; terminal states are frozen.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, to entities.TaskStatus) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var from entities.TaskStatus
	var principal string
	err = tx.QueryRow(ctx,
		"SELECT status, COALESCE(principal, '') FROM agent_tasks WHERE id = $1 FOR UPDATE", id).
		Scan(&from, &principal)
	if err == pgx.ErrNoRows {
		return &entities.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return err
	}
	if !entities.CanTransition(from, to) {
		return fmt.Errorf("invalid transition %s -> %s for task %s", from, to, id)
	}

	now := time.Now()
	if to.Terminal() {
		_, err = tx.Exec(ctx, `
			UPDATE agent_tasks SET status = $1, updated_at = $2, completed_at = $2 WHERE id = $3
		`, to, now, id)
		if err == nil {
			_, err = tx.Exec(ctx, "DELETE FROM open_tasks WHERE task_id = $1", id)
		}
		if err == nil && principal != "" {
			// Repoint the index at the principal's next-newest open task so
			// quick replies keep resolving when an older task is still open.
			_, err = tx.Exec(ctx, `
				INSERT INTO open_tasks (principal, task_id, created_at)
				SELECT principal, id, created_at FROM agent_tasks
				WHERE principal = $1 AND status IN ('PENDING', 'AWAITING_INPUT')
				ORDER BY created_at DESC
				LIMIT 1
				ON CONFLICT (principal) DO NOTHING
			`, principal)
		}
	} else if to == entities.StatusProcessing {
		_, err = tx.Exec(ctx, `
			UPDATE agent_tasks SET status = $1, updated_at = $2,
				processed_at = COALESCE(processed_at, $2)
			WHERE id = $3
		`, to, now, id)
	} else {
		_, err = tx.Exec(ctx, "UPDATE agent_tasks SET status = $1, updated_at = $2 WHERE id = $3", to, now, id)
	}
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordDecision attaches the classifier output and routing metadata.
func (r *TaskRepository) RecordDecision(ctx context.Context, task *entities.AgentTask) error {
	entitiesJSON, err := marshalJSONB(task.Entities)
	if err != nil {
		return err
	}
	metaJSON, err := marshalJSONB(task.AIMetadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		UPDATE agent_tasks
		SET task_type = $1, priority = $2, entities = $3, ai_metadata = $4,
			resolution = $5, error_message = $6, updated_at = NOW()
		WHERE id = $7
	`, task.TaskType, task.Priority, entitiesJSON, metaJSON, task.Resolution, task.ErrorMessage, task.ID)
	return err
}

func (r *TaskRepository) IncrementRetry(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE agent_tasks SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1 RETURNING retry_count
	`, id).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, &entities.NotFoundError{Kind: "task", ID: id}
	}
	return count, err
}

func (r *TaskRepository) CountByStatus(ctx context.Context, orgID string) (map[entities.TaskStatus]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*) FROM agent_tasks WHERE org_id = $1 GROUP BY status
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entities.TaskStatus]int)
	for rows.Next() {
		var status entities.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListStalled finds open auto-execute tasks that never made it into the job
// queue, for the periodic dispatch sweep.
func (r *TaskRepository) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*entities.AgentTask, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM agent_tasks t
		WHERE t.status = 'PENDING'
		  AND t.ai_metadata->>'verdict' = 'AUTO_EXECUTE'
		  AND t.retry_count < $1
		  AND t.updated_at < $2
		  AND NOT EXISTS (SELECT 1 FROM agent_jobs j WHERE j.task_id = t.id)
		ORDER BY t.updated_at ASC
		LIMIT $3
	`, entities.MaxRetries, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows pgx.Rows) ([]*entities.AgentTask, error) {
	tasks := []*entities.AgentTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*entities.AgentTask, error) {
	var t entities.AgentTask
	var entitiesJSON, metaJSON []byte
	err := row.Scan(&t.ID, &t.UserID, &t.OrgID, &t.Principal, &t.Source, &t.SourceID,
		&t.RawContent, &t.TaskType, &t.Priority, &t.Status, &entitiesJSON, &metaJSON,
		&t.Resolution, &t.ErrorMessage, &t.RetryCount, &t.CreatedAt, &t.UpdatedAt,
		&t.ProcessedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(entitiesJSON) > 0 {
		json.Unmarshal(entitiesJSON, &t.Entities)
	}
	if len(metaJSON) > 0 {
		json.Unmarshal(metaJSON, &t.AIMetadata)
	}
	return &t, nil
}

func marshalJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
