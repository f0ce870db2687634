package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/repository"
)

// DefaultMaxAttachmentBytes caps a single upload.
const DefaultMaxAttachmentBytes = 10 << 20

// Validator handles input and threading validation for task operations.
type Validator struct {
	commentRepo        *repository.CommentRepository
	maxAttachmentBytes int64
}

// NewValidator creates a new Validator.
func NewValidator(commentRepo *repository.CommentRepository) *Validator {
	return &Validator{
		commentRepo:        commentRepo,
		maxAttachmentBytes: DefaultMaxAttachmentBytes,
	}
}

// ValidateDraft trims the title and checks the enumerated fields.
func (v *Validator) ValidateDraft(draft *domain.TaskDraft) error {
	draft.Title = strings.TrimSpace(draft.Title)
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	return nil
}

// ValidatePatch rejects a blank title and unknown enum values.
func (v *Validator) ValidatePatch(patch *domain.TaskPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("invalid task update: %w", err)
	}
	return nil
}

// ValidateTitle returns the trimmed subtask title.
func (v *Validator) ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.ErrEmptyTitle
	}
	return title, nil
}

// ValidateComment trims the content and checks the author.
func (v *Validator) ValidateComment(draft *domain.CommentDraft) error {
	content, err := v.ValidateContent(draft.Content)
	if err != nil {
		return err
	}
	draft.Content = content

	if strings.TrimSpace(draft.Author.ID) == "" {
		return fmt.Errorf("comment author: %w", domain.ErrEmptyUserID)
	}
	if draft.ParentID != nil && *draft.ParentID == "" {
		draft.ParentID = nil
	}
	return nil
}

// ValidateContent returns the trimmed comment text.
func (v *Validator) ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.ErrEmptyComment
	}
	return content, nil
}

// ValidateUserID rejects an empty liker.
func (v *Validator) ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrEmptyUserID
	}
	return nil
}

// ValidateAttachment checks the upload before any bytes are stored.
func (v *Validator) ValidateAttachment(att *domain.Attachment, size int) error {
	if size == 0 {
		return domain.ErrEmptyAttachment
	}
	if int64(size) > v.maxAttachmentBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", domain.ErrAttachmentTooBig, size, v.maxAttachmentBytes)
	}
	if strings.TrimSpace(att.UploadedBy) == "" {
		return fmt.Errorf("attachment uploader: %w", domain.ErrEmptyUserID)
	}
	if att.FileName == "" {
		att.FileName = "file"
	}
	if att.ContentType == "" {
		att.ContentType = "application/octet-stream"
	}
	return nil
}

// CheckReply verifies that parentID is a top-level comment of the same task.
// Runs inside the transaction that holds the task lock.
func (v *Validator) CheckReply(ctx context.Context, tx pgx.Tx, taskID, parentID string) error {
	grandparent, err := v.commentRepo.ParentOf(ctx, tx, taskID, parentID)
	if err != nil {
		return fmt.Errorf("reply to %s: %w", parentID, err)
	}
	if grandparent != nil {
		return fmt.Errorf("reply to %s: %w", parentID, domain.ErrNestedReply)
	}
	return nil
}
