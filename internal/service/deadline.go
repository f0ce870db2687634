package service

import (
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
)

// OverdueCutoff returns the start of now's day. Tasks due before it are overdue; a task due
// later today is not.
func OverdueCutoff(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// IsOverdue reports whether an unfinished task is past its due date.
func IsOverdue(task *domain.Task, now time.Time) bool {
	if task.DueDate == nil || task.Status == domain.TaskStatusDone {
		return false
	}
	return task.DueDate.Before(OverdueCutoff(now))
}
