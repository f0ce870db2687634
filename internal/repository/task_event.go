package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskboard/internal/domain"
)

// TaskEventRepository journals collection changes so late subscribers can catch up.
type TaskEventRepository struct {
	pool *pgxpool.Pool
}

// NewTaskEventRepository creates a new TaskEventRepository.
func NewTaskEventRepository(pool *pgxpool.Pool) *TaskEventRepository {
	return &TaskEventRepository{pool: pool}
}

// Create appends an event within the caller's transaction and fills ID and At.
func (r *TaskEventRepository) Create(ctx context.Context, tx pgx.Tx, event *domain.ChangeEvent) error {
	query, args, err := psql.
		Insert("task_events").
		Columns("task_id", "type").
		Values(event.TaskID, event.Type).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&event.ID, &event.At)
	if err != nil {
		return fmt.Errorf("create task event: %w", err)
	}

	return nil
}

// ListSince returns events with an id greater than afterID, oldest first, at most limit.
// A zero since time means no lower time bound.
func (r *TaskEventRepository) ListSince(ctx context.Context, afterID int64, since time.Time, limit int) ([]domain.ChangeEvent, error) {
	qb := psql.
		Select("id", "task_id", "type", "created_at").
		From("task_events").
		Where(sq.Gt{"id": afterID})
	if !since.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": since})
	}

	query, args, err := qb.
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task events: %w", err)
	}
	defer rows.Close()

	events := []domain.ChangeEvent{}
	for rows.Next() {
		var event domain.ChangeEvent
		if err := rows.Scan(&event.ID, &event.TaskID, &event.Type, &event.At); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}
