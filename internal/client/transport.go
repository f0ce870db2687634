// Package client is the task store client used by the board: it talks to the task
// service (or the legacy script endpoint), caches the last list per user and falls back
// to a per-user local snapshot when the service cannot be reached.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtlprog/taskboard/internal/domain"
)

var (
	// ErrNotFound is returned by transports when the target does not exist remotely.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned by transports for operations they cannot perform.
	ErrUnsupported = errors.New("operation not supported by transport")
	// ErrRemote marks a write that failed remotely and was applied to local state only.
	ErrRemote = errors.New("remote store unavailable")
	// ErrNotSynced marks a task that exists only locally.
	ErrNotSynced = errors.New("task not synced")
)

// StatusError is a non-2xx response from the task service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Transport is one way of reaching the remote task collection.
type Transport interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error

	AddSubtask(ctx context.Context, taskID, title string) error
	UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) error
	ToggleSubtask(ctx context.Context, taskID, subtaskID string) error
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) error

	AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) error
	UpdateComment(ctx context.Context, commentID, content string) error
	DeleteComment(ctx context.Context, commentID string) error
	LikeComment(ctx context.Context, commentID, userID string) error
	UnlikeComment(ctx context.Context, commentID, userID string) error

	LikeTask(ctx context.Context, taskID, userID string) error
	UnlikeTask(ctx context.Context, taskID, userID string) error
}

// AttachmentTransport is implemented by transports that can move files.
type AttachmentTransport interface {
	UploadAttachment(ctx context.Context, taskID string, upload Upload) (domain.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID string) error
}
