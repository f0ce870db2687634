package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/repository"
)

// Notifier receives committed collection changes, e.g. to fan them out to websocket clients.
type Notifier interface {
	Publish(event domain.ChangeEvent)
}

type nopNotifier struct{}

func (nopNotifier) Publish(domain.ChangeEvent) {}

// TaskService coordinates task operations. Every write runs in one transaction that also
// journals a change event; subscribers are notified after commit.
type TaskService struct {
	pool           *pgxpool.Pool
	taskRepo       *repository.TaskRepository
	subtaskRepo    *repository.SubtaskRepository
	commentRepo    *repository.CommentRepository
	attachmentRepo *repository.AttachmentRepository
	eventRepo      *repository.TaskEventRepository
	validator      *Validator
	notifier       Notifier
	now            func() time.Time
}

// NewTaskService creates a new TaskService. A nil notifier drops change events.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	subtaskRepo *repository.SubtaskRepository,
	commentRepo *repository.CommentRepository,
	attachmentRepo *repository.AttachmentRepository,
	eventRepo *repository.TaskEventRepository,
	notifier Notifier,
) *TaskService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &TaskService{
		pool:           pool,
		taskRepo:       taskRepo,
		subtaskRepo:    subtaskRepo,
		commentRepo:    commentRepo,
		attachmentRepo: attachmentRepo,
		eventRepo:      eventRepo,
		validator:      NewValidator(commentRepo),
		notifier:       notifier,
		now:            time.Now,
	}
}

// SetMaxAttachmentBytes changes the upload cap. Non-positive values keep the current cap.
func (s *TaskService) SetMaxAttachmentBytes(n int64) {
	if n > 0 {
		s.validator.maxAttachmentBytes = n
	}
}

// createEventAndCommit persists a change event within the transaction, then commits.
func (s *TaskService) createEventAndCommit(ctx context.Context, tx pgx.Tx, event *domain.ChangeEvent) error {
	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// change runs fn under the row lock of the task that resolve names, journals the change and
// commits. Updates also bump the task's updated_at.
func (s *TaskService) change(
	ctx context.Context,
	change domain.ChangeType,
	resolve func(tx pgx.Tx) (string, error),
	fn func(tx pgx.Tx, taskID string) error,
) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	taskID, err := resolve(tx)
	if err != nil {
		return "", err
	}

	if err := s.taskRepo.Lock(ctx, tx, taskID); err != nil {
		return "", err
	}

	if fn != nil {
		if err := fn(tx, taskID); err != nil {
			return "", err
		}
	}

	if change == domain.ChangeTaskUpdated {
		if err := s.taskRepo.Touch(ctx, tx, taskID); err != nil {
			return "", err
		}
	}

	event := &domain.ChangeEvent{Type: change, TaskID: taskID}
	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return "", err
	}

	s.notifier.Publish(*event)
	return taskID, nil
}

func byTaskID(taskID string) func(pgx.Tx) (string, error) {
	return func(pgx.Tx) (string, error) { return taskID, nil }
}

// ListTasks returns tasks matching filters with their subtasks and comments.
func (s *TaskService) ListTasks(ctx context.Context, filters repository.TaskListFilters) ([]domain.Task, error) {
	tasks, err := s.taskRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns one task with its subtasks and comments.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.taskRepo.GetByID(ctx, taskID)
}

// CreateTask validates and stores a new task. Missing status and priority get defaults.
func (s *TaskService) CreateTask(ctx context.Context, draft domain.TaskDraft) (*domain.Task, error) {
	if err := s.validator.ValidateDraft(&draft); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	created, err := s.taskRepo.Create(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	event := &domain.ChangeEvent{Type: domain.ChangeTaskCreated, TaskID: created.ID}
	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return nil, err
	}
	s.notifier.Publish(*event)

	slog.Info("task created",
		"task_id", created.ID,
		"status", created.Status,
		"department", created.Department,
	)

	return created, nil
}

// UpdateTask applies the set fields of patch. An empty patch returns the task unchanged.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, patch domain.TaskPatch) (*domain.Task, error) {
	if err := s.validator.ValidatePatch(&patch); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.taskRepo.GetByID(ctx, taskID)
	}

	_, err := s.change(ctx, domain.ChangeTaskUpdated, byTaskID(taskID), func(tx pgx.Tx, taskID string) error {
		return s.taskRepo.Update(ctx, tx, taskID, patch)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task updated", "task_id", taskID, "fields", patch.Fields())
	return s.taskRepo.GetByID(ctx, taskID)
}

// DeleteTask removes a task with its subtasks, comments and attachments.
// Returns ErrTaskNotFound when the task does not exist.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.change(ctx, domain.ChangeTaskDeleted, byTaskID(taskID), func(tx pgx.Tx, taskID string) error {
		return s.taskRepo.Delete(ctx, tx, taskID)
	})
	if err != nil {
		return err
	}

	slog.Info("task deleted", "task_id", taskID)
	return nil
}

// AddSubtask appends a checklist item and returns the updated task.
func (s *TaskService) AddSubtask(ctx context.Context, taskID, title string) (*domain.Task, error) {
	title, err := s.validator.ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	return s.updateTask(ctx, taskID, func(tx pgx.Tx, taskID string) error {
		_, err := s.subtaskRepo.Create(ctx, tx, taskID, title)
		return err
	})
}

// UpdateSubtask renames a checklist item.
func (s *TaskService) UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) (*domain.Task, error) {
	title, err := s.validator.ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	return s.updateTask(ctx, taskID, func(tx pgx.Tx, taskID string) error {
		return s.subtaskRepo.UpdateTitle(ctx, tx, taskID, subtaskID, title)
	})
}

// ToggleSubtask flips a checklist item between open and completed.
func (s *TaskService) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*domain.Task, error) {
	return s.updateTask(ctx, taskID, func(tx pgx.Tx, taskID string) error {
		subtask, err := s.subtaskRepo.Toggle(ctx, tx, taskID, subtaskID)
		if err != nil {
			return err
		}
		slog.Debug("subtask toggled", "task_id", taskID, "subtask_id", subtask.ID, "completed", subtask.Completed)
		return nil
	})
}

// DeleteSubtask removes a checklist item.
func (s *TaskService) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*domain.Task, error) {
	return s.updateTask(ctx, taskID, func(tx pgx.Tx, taskID string) error {
		return s.subtaskRepo.Delete(ctx, tx, taskID, subtaskID)
	})
}

// SetTaskLike records or withdraws userID's like on a task.
func (s *TaskService) SetTaskLike(ctx context.Context, taskID, userID string, like bool) (*domain.Task, error) {
	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.updateTask(ctx, taskID, func(tx pgx.Tx, taskID string) error {
		return s.taskRepo.SetLike(ctx, tx, taskID, userID, like)
	})
}

func (s *TaskService) updateTask(ctx context.Context, taskID string, fn func(tx pgx.Tx, taskID string) error) (*domain.Task, error) {
	if _, err := s.change(ctx, domain.ChangeTaskUpdated, byTaskID(taskID), fn); err != nil {
		return nil, err
	}
	return s.taskRepo.GetByID(ctx, taskID)
}

// AddComment posts a comment or a reply. Replies must target a top-level comment of the
// same task.
func (s *TaskService) AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) (*domain.Comment, error) {
	if err := s.validator.ValidateComment(&draft); err != nil {
		return nil, err
	}

	var comment *domain.Comment
	_, err := s.change(ctx, domain.ChangeTaskUpdated, byTaskID(taskID), func(tx pgx.Tx, taskID string) error {
		if draft.ParentID != nil {
			if err := s.validator.CheckReply(ctx, tx, taskID, *draft.ParentID); err != nil {
				return err
			}
		}
		var err error
		comment, err = s.commentRepo.Create(ctx, tx, taskID, draft)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("comment added",
		"task_id", taskID,
		"comment_id", comment.ID,
		"user_id", draft.Author.ID,
		"reply", draft.ParentID != nil,
	)
	return comment, nil
}

// UpdateComment replaces the comment text and marks it edited.
func (s *TaskService) UpdateComment(ctx context.Context, commentID, content string) (*domain.Comment, error) {
	content, err := s.validator.ValidateContent(content)
	if err != nil {
		return nil, err
	}
	return s.updateComment(ctx, commentID, func(tx pgx.Tx) error {
		return s.commentRepo.UpdateContent(ctx, tx, commentID, content)
	})
}

// SetCommentLike records or withdraws userID's like on a comment.
func (s *TaskService) SetCommentLike(ctx context.Context, commentID, userID string, like bool) (*domain.Comment, error) {
	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.updateComment(ctx, commentID, func(tx pgx.Tx) error {
		return s.commentRepo.SetLike(ctx, tx, commentID, userID, like)
	})
}

// DeleteComment removes a comment together with its replies.
func (s *TaskService) DeleteComment(ctx context.Context, commentID string) error {
	taskID, err := s.change(ctx, domain.ChangeTaskUpdated, s.commentTask(ctx, commentID), func(tx pgx.Tx, _ string) error {
		return s.commentRepo.Delete(ctx, tx, commentID)
	})
	if err != nil {
		return err
	}

	slog.Info("comment deleted", "task_id", taskID, "comment_id", commentID)
	return nil
}

func (s *TaskService) updateComment(ctx context.Context, commentID string, fn func(tx pgx.Tx) error) (*domain.Comment, error) {
	_, err := s.change(ctx, domain.ChangeTaskUpdated, s.commentTask(ctx, commentID), func(tx pgx.Tx, _ string) error {
		return fn(tx)
	})
	if err != nil {
		return nil, err
	}

	comment, _, err := s.commentRepo.GetByID(ctx, commentID)
	return comment, err
}

func (s *TaskService) commentTask(ctx context.Context, commentID string) func(pgx.Tx) (string, error) {
	return func(tx pgx.Tx) (string, error) {
		return s.commentRepo.TaskIDFor(ctx, tx, commentID)
	}
}

// UploadAttachment stores a file for a task.
func (s *TaskService) UploadAttachment(ctx context.Context, att domain.Attachment, data []byte) (*domain.Attachment, error) {
	if err := s.validator.ValidateAttachment(&att, len(data)); err != nil {
		return nil, err
	}

	_, err := s.change(ctx, domain.ChangeTaskUpdated, byTaskID(att.TaskID), func(tx pgx.Tx, _ string) error {
		return s.attachmentRepo.Create(ctx, tx, &att, data)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("attachment uploaded",
		"task_id", att.TaskID,
		"attachment_id", att.ID,
		"size", att.Size,
		"user_id", att.UploadedBy,
	)
	return &att, nil
}

// ListAttachments returns a task's attachment metadata.
func (s *TaskService) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	exists, err := s.taskRepo.Exists(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrTaskNotFound
	}
	return s.attachmentRepo.ListByTask(ctx, taskID)
}

// GetAttachment returns an attachment with its bytes.
func (s *TaskService) GetAttachment(ctx context.Context, attachmentID string) (*domain.Attachment, []byte, error) {
	return s.attachmentRepo.GetWithData(ctx, attachmentID)
}

// DeleteAttachment removes an attachment.
func (s *TaskService) DeleteAttachment(ctx context.Context, attachmentID string) error {
	resolve := func(tx pgx.Tx) (string, error) {
		return s.attachmentRepo.Delete(ctx, tx, attachmentID)
	}
	taskID, err := s.change(ctx, domain.ChangeTaskUpdated, resolve, nil)
	if err != nil {
		return err
	}

	slog.Info("attachment deleted", "task_id", taskID, "attachment_id", attachmentID)
	return nil
}

// Stats summarizes the board as of now.
func (s *TaskService) Stats(ctx context.Context) (*repository.BoardStatsResult, error) {
	stats, err := s.taskRepo.GetBoardStats(ctx, OverdueCutoff(s.now()))
	if err != nil {
		return nil, fmt.Errorf("board stats: %w", err)
	}
	return stats, nil
}

// Events returns journaled changes after afterID, oldest first.
func (s *TaskService) Events(ctx context.Context, afterID int64, since time.Time, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	events, err := s.eventRepo.ListSince(ctx, afterID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// IsNotFound reports whether err means a missing task, subtask, comment or attachment.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrTaskNotFound) ||
		errors.Is(err, domain.ErrSubtaskNotFound) ||
		errors.Is(err, domain.ErrCommentNotFound) ||
		errors.Is(err, domain.ErrAttachmentNotFound)
}
