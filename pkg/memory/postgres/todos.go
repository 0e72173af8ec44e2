package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// TaskStoreImpl persists to-do items in the todos table.
//
// Obtain one via [Store.Tasks] rather than constructing directly.
// All methods are safe for concurrent use.
type TaskStoreImpl struct {
	pool *pgxpool.Pool
}

// Add implements [memory.TaskStore].
func (s *TaskStoreImpl) Add(ctx context.Context, userID int64, text string) (memory.Task, error) {
	const q = `
		INSERT INTO todos (user_id, task, status)
		VALUES ($1, $2, $3)
		RETURNING id`

	t := memory.Task{UserID: userID, Text: text, Status: memory.TaskPending}
	if err := s.pool.QueryRow(ctx, q, userID, text, memory.TaskPending).Scan(&t.ID); err != nil {
		return memory.Task{}, fmt.Errorf("task store: add: %w", err)
	}
	return t, nil
}

// Pending implements [memory.TaskStore].
func (s *TaskStoreImpl) Pending(ctx context.Context, userID int64) ([]memory.Task, error) {
	const q = `
		SELECT id, user_id, task, status
		FROM   todos
		WHERE  user_id = $1 AND status = $2
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, userID, memory.TaskPending)
	if err != nil {
		return nil, fmt.Errorf("task store: pending: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Task, error) {
		var t memory.Task
		err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Status)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("task store: scan rows: %w", err)
	}
	if tasks == nil {
		tasks = []memory.Task{}
	}
	return tasks, nil
}

// Complete implements [memory.TaskStore]. Only a pending task owned by the
// user transitions; anything else reports done=false.
func (s *TaskStoreImpl) Complete(ctx context.Context, userID, taskID int64) (bool, error) {
	const q = `
		UPDATE todos
		SET    status = $1
		WHERE  id = $2 AND user_id = $3 AND status = $4`

	tag, err := s.pool.Exec(ctx, q, memory.TaskCompleted, taskID, userID, memory.TaskPending)
	if err != nil {
		return false, fmt.Errorf("task store: complete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove implements [memory.TaskStore].
func (s *TaskStoreImpl) Remove(ctx context.Context, userID, taskID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("task store: remove: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
