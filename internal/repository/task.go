package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskboard/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "title", "description", "status", "priority", "COALESCE(department, '')",
	"liked_by", "is_read", "start_date", "due_date", "created_at", "updated_at",
}

// TaskRepository handles database operations for tasks.
type TaskRepository struct {
	pool     *pgxpool.Pool
	subtasks *SubtaskRepository
	comments *CommentRepository
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{
		pool:     pool,
		subtasks: NewSubtaskRepository(pool),
		comments: NewCommentRepository(pool),
	}
}

// scanTask scans a single row into a Task struct. Subtasks and comments are loaded separately.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task       domain.Task
		department string
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&department,
		&task.LikedBy,
		&task.IsRead,
		&task.StartDate,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.Department = domain.Department(department)
	if task.LikedBy == nil {
		task.LikedBy = []string{}
	}
	task.Likes = len(task.LikedBy)
	task.Subtasks = []domain.Subtask{}
	task.Comments = []domain.Comment{}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task by ID together with its subtasks and comments.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*domain.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// Exists reports whether the task is stored.
func (r *TaskRepository) Exists(ctx context.Context, taskID string) (bool, error) {
	query, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build Exists query for task: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check task %s: %w", taskID, err)
	}
	return exists, nil
}

// Lock takes a row lock on the task for the rest of the transaction.
// Sub-resource writes lock their task first so concurrent edits serialize per task.
func (r *TaskRepository) Lock(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Select("id").
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Lock query for task %s: %w", taskID, err)
	}

	var id string
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("lock task %s: %w", taskID, err)
	}
	return nil
}

// Create creates a new task in the database within a transaction.
// Returns the created task with ID, CreatedAt, and UpdatedAt populated.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, draft domain.TaskDraft) (*domain.Task, error) {
	// id and timestamps come back from RETURNING.
	task := domain.NewTask("", draft, time.Time{})

	query, args, err := psql.
		Insert("tasks").
		Columns("title", "description", "status", "priority", "department", "start_date", "due_date").
		Values(
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			nullableDepartment(task.Department),
			task.StartDate,
			task.DueDate,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for task: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return &task, nil
}

// Update writes the fields set in patch and bumps updated_at.
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, taskID string, patch domain.TaskPatch) error {
	qb := psql.Update("tasks").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID})

	if patch.Title != nil {
		qb = qb.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		qb = qb.Set("description", *patch.Description)
	}
	if patch.Status != nil {
		qb = qb.Set("status", *patch.Status)
	}
	if patch.Priority != nil {
		qb = qb.Set("priority", *patch.Priority)
	}
	if patch.Department != nil {
		qb = qb.Set("department", nullableDepartment(*patch.Department))
	}
	if patch.IsRead != nil {
		qb = qb.Set("is_read", *patch.IsRead)
	}
	if patch.StartDate.Set {
		qb = qb.Set("start_date", patch.StartDate.Time)
	}
	if patch.DueDate.Set {
		qb = qb.Set("due_date", patch.DueDate.Time)
	}

	if err := execOne(ctx, tx, qb, domain.ErrTaskNotFound); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	return nil
}

// Touch bumps updated_at after a change to one of the task's sub-resources.
func (r *TaskRepository) Touch(ctx context.Context, tx pgx.Tx, taskID string) error {
	qb := psql.Update("tasks").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID})

	if err := execOne(ctx, tx, qb, domain.ErrTaskNotFound); err != nil {
		return fmt.Errorf("touch task %s: %w", taskID, err)
	}
	return nil
}

// Delete removes the task; subtasks, comments and attachments go with it.
// Returns ErrTaskNotFound when there was nothing to delete.
func (r *TaskRepository) Delete(ctx context.Context, tx pgx.Tx, taskID string) error {
	qb := psql.Delete("tasks").Where(sq.Eq{"id": taskID})

	if err := execOne(ctx, tx, qb, domain.ErrTaskNotFound); err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return nil
}

// SetLike adds or removes userID in the task's liked_by array. Liking twice is a no-op.
func (r *TaskRepository) SetLike(ctx context.Context, tx pgx.Tx, taskID, userID string, like bool) error {
	expr := unlikeExpr(userID)
	if like {
		expr = likeExpr(userID)
	}
	qb := psql.Update("tasks").
		Set("liked_by", expr).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID})

	if err := execOne(ctx, tx, qb, domain.ErrTaskNotFound); err != nil {
		return fmt.Errorf("like task %s: %w", taskID, err)
	}
	return nil
}

// loadChildren fills subtasks and comments for tasks with one query per child table.
func (r *TaskRepository) loadChildren(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}

	subtasks, err := r.subtasks.ListByTaskIDs(ctx, ids)
	if err != nil {
		return err
	}
	comments, err := r.comments.ListByTaskIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		if s, ok := subtasks[t.ID]; ok {
			t.Subtasks = s
		}
		if c, ok := comments[t.ID]; ok {
			t.Comments = c
		}
	}
	return nil
}

func nullableDepartment(d domain.Department) *string {
	if d == "" {
		return nil
	}
	s := string(d)
	return &s
}
