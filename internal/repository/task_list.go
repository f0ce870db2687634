package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/taskboard/internal/domain"
)

// TaskListFilters holds the optional filters for task listing.
type TaskListFilters struct {
	Departments []domain.Department // Optional: only these departments
	Statuses    []domain.TaskStatus // Optional: only these statuses
	// IncludePublic keeps department-less tasks when Departments is set.
	IncludePublic bool
}

// priorityOrder sorts High, Medium, Low, then anything unexpected.
const priorityOrder = "CASE priority WHEN 'Cao' THEN 1 WHEN 'Trung bình' THEN 2 WHEN 'Thấp' THEN 3 ELSE 4 END ASC"

// List retrieves tasks with their subtasks and comments, highest priority first and newest
// first within a priority. Clients re-sort for display; this order only keeps responses stable.
func (r *TaskRepository) List(ctx context.Context, filters TaskListFilters) ([]domain.Task, error) {
	qb := psql.Select(taskColumns...).From("tasks")

	if len(filters.Departments) > 0 {
		departments := sq.Eq{"department": filters.Departments}
		if filters.IncludePublic {
			qb = qb.Where(sq.Or{departments, sq.Eq{"department": nil}})
		} else {
			qb = qb.Where(departments)
		}
	}

	if len(filters.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filters.Statuses})
	}

	qb = qb.OrderBy(priorityOrder, "created_at DESC", "id ASC")

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	if err := r.loadChildren(ctx, tasks); err != nil {
		return nil, err
	}

	out := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out, nil
}
