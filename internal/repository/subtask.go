package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskboard/internal/domain"
)

var subtaskColumns = []string{"id", "task_id", "title", "completed", "created_at", "completed_at"}

// SubtaskRepository handles database operations for subtasks.
type SubtaskRepository struct {
	pool *pgxpool.Pool
}

// NewSubtaskRepository creates a new SubtaskRepository.
func NewSubtaskRepository(pool *pgxpool.Pool) *SubtaskRepository {
	return &SubtaskRepository{pool: pool}
}

// Create appends a subtask to the task's checklist.
func (r *SubtaskRepository) Create(ctx context.Context, tx pgx.Tx, taskID, title string) (*domain.Subtask, error) {
	query, args, err := psql.
		Insert("subtasks").
		Columns("task_id", "title").
		Values(taskID, title).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for subtask: %w", err)
	}

	subtask := domain.Subtask{Title: title}
	if err := tx.QueryRow(ctx, query, args...).Scan(&subtask.ID, &subtask.CreatedAt); err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	return &subtask, nil
}

// UpdateTitle renames a subtask of the given task.
func (r *SubtaskRepository) UpdateTitle(ctx context.Context, tx pgx.Tx, taskID, subtaskID, title string) error {
	qb := psql.Update("subtasks").
		Set("title", title).
		Where(sq.Eq{"id": subtaskID, "task_id": taskID})

	if err := execOne(ctx, tx, qb, domain.ErrSubtaskNotFound); err != nil {
		return fmt.Errorf("update subtask %s: %w", subtaskID, err)
	}
	return nil
}

// Toggle flips completion. completed_at is stamped when the subtask becomes completed and
// cleared when it is reopened.
func (r *SubtaskRepository) Toggle(ctx context.Context, tx pgx.Tx, taskID, subtaskID string) (*domain.Subtask, error) {
	query, args, err := psql.
		Update("subtasks").
		Set("completed", sq.Expr("NOT completed")).
		Set("completed_at", sq.Expr("CASE WHEN completed THEN NULL ELSE NOW() END")).
		Where(sq.Eq{"id": subtaskID, "task_id": taskID}).
		Suffix("RETURNING id, task_id, title, completed, created_at, completed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Toggle query for subtask %s: %w", subtaskID, err)
	}

	subtask, _, err := scanSubtask(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// Delete removes a subtask of the given task.
func (r *SubtaskRepository) Delete(ctx context.Context, tx pgx.Tx, taskID, subtaskID string) error {
	qb := psql.Delete("subtasks").Where(sq.Eq{"id": subtaskID, "task_id": taskID})

	if err := execOne(ctx, tx, qb, domain.ErrSubtaskNotFound); err != nil {
		return fmt.Errorf("delete subtask %s: %w", subtaskID, err)
	}
	return nil
}

// ListByTaskIDs returns the subtasks of each task in insertion order, keyed by task id.
func (r *SubtaskRepository) ListByTaskIDs(ctx context.Context, taskIDs []string) (map[string][]domain.Subtask, error) {
	query, args, err := psql.
		Select(subtaskColumns...).
		From("subtasks").
		Where(sq.Eq{"task_id": taskIDs}).
		OrderBy("task_id", "position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTaskIDs query for subtasks: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subtasks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Subtask)
	for rows.Next() {
		subtask, taskID, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], *subtask)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanSubtask(row pgx.Row) (*domain.Subtask, string, error) {
	var (
		subtask domain.Subtask
		taskID  string
	)
	err := row.Scan(&subtask.ID, &taskID, &subtask.Title, &subtask.Completed, &subtask.CreatedAt, &subtask.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrSubtaskNotFound
		}
		return nil, "", fmt.Errorf("scan subtask: %w", err)
	}
	return &subtask, taskID, nil
}
