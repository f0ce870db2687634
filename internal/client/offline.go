package client

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/taskboard/internal/domain"
)

// localOp applies a write to a task list when the remote store cannot take it.
type localOp func(tasks []domain.Task, now time.Time) ([]domain.Task, error)

// localID makes an id that cannot collide with ids issued by the service.
func localID() string {
	return "local-" + uuid.NewString()
}

func findTask(tasks []domain.Task, id string) (int, error) {
	i := slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == id })
	if i < 0 {
		return -1, domain.ErrTaskNotFound
	}
	return i, nil
}

func findComment(tasks []domain.Task, commentID string) (int, int, error) {
	for ti := range tasks {
		for ci := range tasks[ti].Comments {
			if tasks[ti].Comments[ci].ID == commentID {
				return ti, ci, nil
			}
		}
	}
	return -1, -1, domain.ErrCommentNotFound
}

func withTask(taskID string, fn func(t *domain.Task, now time.Time) error) localOp {
	return func(tasks []domain.Task, now time.Time) ([]domain.Task, error) {
		i, err := findTask(tasks, taskID)
		if err != nil {
			return tasks, err
		}
		if err := fn(&tasks[i], now); err != nil {
			return tasks, err
		}
		tasks[i].UpdatedAt = now
		return tasks, nil
	}
}

func withSubtask(taskID, subtaskID string, fn func(s *domain.Subtask, now time.Time)) localOp {
	return withTask(taskID, func(t *domain.Task, now time.Time) error {
		i := slices.IndexFunc(t.Subtasks, func(s domain.Subtask) bool { return s.ID == subtaskID })
		if i < 0 {
			return domain.ErrSubtaskNotFound
		}
		fn(&t.Subtasks[i], now)
		return nil
	})
}

func withComment(commentID string, fn func(c *domain.Comment, now time.Time)) localOp {
	return func(tasks []domain.Task, now time.Time) ([]domain.Task, error) {
		ti, ci, err := findComment(tasks, commentID)
		if err != nil {
			return tasks, err
		}
		fn(&tasks[ti].Comments[ci], now)
		tasks[ti].UpdatedAt = now
		return tasks, nil
	}
}

func insertTaskOp(task domain.Task) localOp {
	return func(tasks []domain.Task, _ time.Time) ([]domain.Task, error) {
		return append(tasks, task), nil
	}
}

func patchTaskOp(id string, patch domain.TaskPatch) localOp {
	return withTask(id, func(t *domain.Task, now time.Time) error {
		patch.Apply(t, now)
		return nil
	})
}

func deleteTaskOp(id string) localOp {
	return func(tasks []domain.Task, _ time.Time) ([]domain.Task, error) {
		return slices.DeleteFunc(tasks, func(t domain.Task) bool { return t.ID == id }), nil
	}
}

func addSubtaskOp(taskID, subtaskID, title string) localOp {
	return withTask(taskID, func(t *domain.Task, now time.Time) error {
		t.Subtasks = append(t.Subtasks, domain.Subtask{ID: subtaskID, Title: title, CreatedAt: now})
		return nil
	})
}

func updateSubtaskOp(taskID, subtaskID, title string) localOp {
	return withSubtask(taskID, subtaskID, func(s *domain.Subtask, _ time.Time) {
		s.Title = title
	})
}

func toggleSubtaskOp(taskID, subtaskID string) localOp {
	return withSubtask(taskID, subtaskID, func(s *domain.Subtask, now time.Time) {
		s.SetCompleted(!s.Completed, now)
	})
}

func deleteSubtaskOp(taskID, subtaskID string) localOp {
	return withTask(taskID, func(t *domain.Task, _ time.Time) error {
		n := len(t.Subtasks)
		t.Subtasks = slices.DeleteFunc(t.Subtasks, func(s domain.Subtask) bool { return s.ID == subtaskID })
		if len(t.Subtasks) == n {
			return domain.ErrSubtaskNotFound
		}
		return nil
	})
}

func addCommentOp(taskID, commentID string, draft domain.CommentDraft) localOp {
	return withTask(taskID, func(t *domain.Task, now time.Time) error {
		if draft.ParentID != nil {
			if err := domain.ValidateReply(t.Comments, *draft.ParentID); err != nil {
				return err
			}
		}
		t.Comments = append(t.Comments, domain.Comment{
			ID:        commentID,
			Content:   draft.Content,
			Author:    draft.Author,
			CreatedAt: now,
			LikedBy:   []string{},
			ParentID:  draft.ParentID,
		})
		return nil
	})
}

func updateCommentOp(commentID, content string) localOp {
	return withComment(commentID, func(c *domain.Comment, now time.Time) {
		c.Content = content
		c.IsEdited = true
		c.UpdatedAt = &now
	})
}

// deleteCommentOp removes the comment and its replies.
func deleteCommentOp(commentID string) localOp {
	return func(tasks []domain.Task, now time.Time) ([]domain.Task, error) {
		ti, _, err := findComment(tasks, commentID)
		if err != nil {
			return tasks, err
		}
		tasks[ti].Comments = slices.DeleteFunc(tasks[ti].Comments, func(c domain.Comment) bool {
			return c.ID == commentID || (c.ParentID != nil && *c.ParentID == commentID)
		})
		tasks[ti].UpdatedAt = now
		return tasks, nil
	}
}

func likeCommentOp(commentID, userID string, like bool) localOp {
	return withComment(commentID, func(c *domain.Comment, _ time.Time) {
		if like {
			c.Like(userID)
		} else {
			c.Unlike(userID)
		}
	})
}

func likeTaskOp(taskID, userID string, like bool) localOp {
	return withTask(taskID, func(t *domain.Task, _ time.Time) error {
		if like {
			t.Like(userID)
		} else {
			t.Unlike(userID)
		}
		return nil
	})
}
