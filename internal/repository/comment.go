package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskboard/internal/domain"
)

var commentColumns = []string{
	"id", "task_id", "parent_id", "content", "author_id", "author_name", "author_role",
	"liked_by", "is_edited", "created_at", "updated_at",
}

// CommentRepository handles database operations for comments.
type CommentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

// Create stores a comment on a task. Reply validation is the caller's job.
func (r *CommentRepository) Create(ctx context.Context, tx pgx.Tx, taskID string, draft domain.CommentDraft) (*domain.Comment, error) {
	query, args, err := psql.
		Insert("comments").
		Columns("task_id", "parent_id", "content", "author_id", "author_name", "author_role").
		Values(taskID, draft.ParentID, draft.Content, draft.Author.ID, draft.Author.Name, draft.Author.Role).
		Suffix("RETURNING " + strings.Join(commentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for comment: %w", err)
	}

	comment, _, err := scanComment(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// GetByID returns a comment and the id of the task it belongs to.
func (r *CommentRepository) GetByID(ctx context.Context, commentID string) (*domain.Comment, string, error) {
	query, args, err := psql.
		Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"id": commentID}).
		ToSql()
	if err != nil {
		return nil, "", fmt.Errorf("build GetByID query for comment: %w", err)
	}

	return scanComment(r.pool.QueryRow(ctx, query, args...))
}

// TaskIDFor returns the owning task id of a comment inside a transaction.
func (r *CommentRepository) TaskIDFor(ctx context.Context, tx pgx.Tx, commentID string) (string, error) {
	query, args, err := psql.
		Select("task_id").
		From("comments").
		Where(sq.Eq{"id": commentID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build TaskIDFor query for comment: %w", err)
	}

	var taskID string
	if err := tx.QueryRow(ctx, query, args...).Scan(&taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrCommentNotFound
		}
		return "", fmt.Errorf("find task for comment %s: %w", commentID, err)
	}
	return taskID, nil
}

// ParentOf reports whether commentID exists on taskID and, if so, its own parent id.
func (r *CommentRepository) ParentOf(ctx context.Context, tx pgx.Tx, taskID, commentID string) (*string, error) {
	query, args, err := psql.
		Select("parent_id").
		From("comments").
		Where(sq.Eq{"id": commentID, "task_id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ParentOf query for comment: %w", err)
	}

	var parentID *string
	if err := tx.QueryRow(ctx, query, args...).Scan(&parentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParentNotFound
		}
		return nil, fmt.Errorf("load parent of comment %s: %w", commentID, err)
	}
	return parentID, nil
}

// UpdateContent replaces the text and marks the comment edited.
func (r *CommentRepository) UpdateContent(ctx context.Context, tx pgx.Tx, commentID, content string) error {
	qb := psql.Update("comments").
		Set("content", content).
		Set("is_edited", true).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": commentID})

	if err := execOne(ctx, tx, qb, domain.ErrCommentNotFound); err != nil {
		return fmt.Errorf("update comment %s: %w", commentID, err)
	}
	return nil
}

// Delete removes a comment; its replies go with it.
func (r *CommentRepository) Delete(ctx context.Context, tx pgx.Tx, commentID string) error {
	qb := psql.Delete("comments").Where(sq.Eq{"id": commentID})

	if err := execOne(ctx, tx, qb, domain.ErrCommentNotFound); err != nil {
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	return nil
}

// SetLike adds or removes userID in the comment's liked_by array.
func (r *CommentRepository) SetLike(ctx context.Context, tx pgx.Tx, commentID, userID string, like bool) error {
	expr := unlikeExpr(userID)
	if like {
		expr = likeExpr(userID)
	}
	qb := psql.Update("comments").
		Set("liked_by", expr).
		Where(sq.Eq{"id": commentID})

	if err := execOne(ctx, tx, qb, domain.ErrCommentNotFound); err != nil {
		return fmt.Errorf("like comment %s: %w", commentID, err)
	}
	return nil
}

// ListByTaskIDs returns each task's comments in posting order, keyed by task id.
func (r *CommentRepository) ListByTaskIDs(ctx context.Context, taskIDs []string) (map[string][]domain.Comment, error) {
	query, args, err := psql.
		Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"task_id": taskIDs}).
		OrderBy("task_id", "position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTaskIDs query for comments: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Comment)
	for rows.Next() {
		comment, taskID, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanComment(row pgx.Row) (*domain.Comment, string, error) {
	var (
		comment domain.Comment
		taskID  string
	)
	err := row.Scan(
		&comment.ID,
		&taskID,
		&comment.ParentID,
		&comment.Content,
		&comment.Author.ID,
		&comment.Author.Name,
		&comment.Author.Role,
		&comment.LikedBy,
		&comment.IsEdited,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrCommentNotFound
		}
		return nil, "", fmt.Errorf("scan comment: %w", err)
	}
	if comment.LikedBy == nil {
		comment.LikedBy = []string{}
	}
	comment.Likes = len(comment.LikedBy)
	return &comment, taskID, nil
}
