package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
)

// BoardStatsResult holds overall board statistics.
type BoardStatsResult struct {
	TotalTasks        int
	TasksByStatus     map[string]int
	TasksByPriority   map[string]int
	TasksByDepartment map[string]int
	OverdueCount      int
	SubtasksTotal     int
	SubtasksCompleted int
	CommentsTotal     int
	AttachmentsTotal  int
}

// GetBoardStats counts tasks by status, priority and department. A task is overdue when its
// due date is before overdueBefore and it is not done.
func (r *TaskRepository) GetBoardStats(ctx context.Context, overdueBefore time.Time) (*BoardStatsResult, error) {
	result := &BoardStatsResult{}

	var err error
	if result.TasksByStatus, err = r.countBy(ctx, "status"); err != nil {
		return nil, err
	}
	if result.TasksByPriority, err = r.countBy(ctx, "priority"); err != nil {
		return nil, err
	}
	// Department-less tasks are counted under the empty key.
	if result.TasksByDepartment, err = r.countBy(ctx, "COALESCE(department, '')"); err != nil {
		return nil, err
	}
	for _, n := range result.TasksByStatus {
		result.TotalTasks += n
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM tasks
		WHERE due_date < $1
		  AND status <> $2
	`, overdueBefore, domain.TaskStatusDone).Scan(&result.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("count overdue tasks: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM subtasks),
			(SELECT COUNT(*) FROM subtasks WHERE completed),
			(SELECT COUNT(*) FROM comments),
			(SELECT COUNT(*) FROM attachments)
	`).Scan(&result.SubtasksTotal, &result.SubtasksCompleted, &result.CommentsTotal, &result.AttachmentsTotal)
	if err != nil {
		return nil, fmt.Errorf("count task children: %w", err)
	}

	return result, nil
}

// countBy groups tasks by a trusted column expression.
func (r *TaskRepository) countBy(ctx context.Context, expr string) (map[string]int, error) {
	query, args, err := psql.
		Select(expr, "COUNT(*)").
		From("tasks").
		GroupBy(expr).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query by %s: %w", expr, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks by %s: %w", expr, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan count by %s: %w", expr, err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count rows: %w", err)
	}

	return counts, nil
}
