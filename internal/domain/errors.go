package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Not found
	ErrTaskNotFound       = errors.New("task not found")
	ErrSubtaskNotFound    = errors.New("subtask not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrAttachmentNotFound = errors.New("attachment not found")

	// Validation errors
	ErrEmptyTitle        = errors.New("title is required")
	ErrEmptyComment      = errors.New("comment is required")
	ErrEmptyUserID       = errors.New("user id is required")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrInvalidDepartment = errors.New("invalid department")
	ErrEmptyAttachment   = errors.New("attachment is empty")
	ErrAttachmentTooBig  = errors.New("attachment is too large")

	// Comment threading
	ErrParentNotFound = errors.New("parent comment not found")
	ErrNestedReply    = errors.New("replies to replies are not allowed")
)
