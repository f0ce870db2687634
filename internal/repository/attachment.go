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

var attachmentColumns = []string{"id", "task_id", "file_name", "content_type", "size", "uploaded_by", "created_at"}

// AttachmentRepository handles database operations for task attachments.
type AttachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(pool *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

// Create stores the file bytes with their metadata. ID and CreatedAt are filled in.
func (r *AttachmentRepository) Create(ctx context.Context, tx pgx.Tx, att *domain.Attachment, data []byte) error {
	query, args, err := psql.
		Insert("attachments").
		Columns("task_id", "file_name", "content_type", "size", "uploaded_by", "data").
		Values(att.TaskID, att.FileName, att.ContentType, int64(len(data)), att.UploadedBy, data).
		Suffix("RETURNING id, size, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for attachment: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&att.ID, &att.Size, &att.CreatedAt); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// ListByTask returns a task's attachment metadata, oldest first.
func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	query, args, err := psql.
		Select(attachmentColumns...).
		From("attachments").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTask query for attachments: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	attachments := []domain.Attachment{}
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(&att.ID, &att.TaskID, &att.FileName, &att.ContentType, &att.Size, &att.UploadedBy, &att.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return attachments, nil
}

// GetWithData returns the attachment metadata and its bytes.
func (r *AttachmentRepository) GetWithData(ctx context.Context, attachmentID string) (*domain.Attachment, []byte, error) {
	query, args, err := psql.
		Select(append(attachmentColumns, "data")...).
		From("attachments").
		Where(sq.Eq{"id": attachmentID}).
		ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("build GetWithData query for attachment: %w", err)
	}

	var (
		att  domain.Attachment
		data []byte
	)
	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&att.ID, &att.TaskID, &att.FileName, &att.ContentType, &att.Size, &att.UploadedBy, &att.CreatedAt, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrAttachmentNotFound
		}
		return nil, nil, fmt.Errorf("get attachment %s: %w", attachmentID, err)
	}
	return &att, data, nil
}

// Delete removes an attachment and returns the id of the task it belonged to.
func (r *AttachmentRepository) Delete(ctx context.Context, tx pgx.Tx, attachmentID string) (string, error) {
	query, args, err := psql.
		Delete("attachments").
		Where(sq.Eq{"id": attachmentID}).
		Suffix("RETURNING task_id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build Delete query for attachment: %w", err)
	}

	var taskID string
	if err := tx.QueryRow(ctx, query, args...).Scan(&taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrAttachmentNotFound
		}
		return "", fmt.Errorf("delete attachment %s: %w", attachmentID, err)
	}
	return taskID, nil
}
