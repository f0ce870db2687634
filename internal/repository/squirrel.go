package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// psql is the shared Squirrel statement builder configured for PostgreSQL dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// execOne runs a write built by b and returns notFound when it touched no rows.
func execOne(ctx context.Context, tx pgx.Tx, b sq.Sqlizer, notFound error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// likeExpr appends userID to a liked_by array unless it is already there.
func likeExpr(userID string) sq.Sqlizer {
	return sq.Expr("CASE WHEN ? = ANY(liked_by) THEN liked_by ELSE array_append(liked_by, ?) END", userID, userID)
}

func unlikeExpr(userID string) sq.Sqlizer {
	return sq.Expr("array_remove(liked_by, ?)", userID)
}
