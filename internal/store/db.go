package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/winqerweb-code/winqerapp-insights/internal/dependency"
)

func (ms *MYSQLStore) DB() dependency.DB {
	return ms.db
}

// ExecNamed executes a named query with the given parameter map.
func ExecNamed(
	ctx context.Context,
	conn dependency.DB,
	query string,
	params map[string]any,
) error {
	_, err := conn.NamedExecContext(ctx, query, params)
	if err != nil {
		return fmt.Errorf("NamedExecContext: %w", err)
	}
	return nil
}

// QueryListNamed runs a named query and scans every row into T.
func QueryListNamed[T any](
	ctx context.Context,
	conn dependency.DB,
	query string,
	params map[string]any,
) ([]T, error) {
	q, args, err := sqlx.Named(query, params)
	if err != nil {
		return nil, fmt.Errorf("named: %w", err)
	}
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return nil, fmt.Errorf("in: %w", err)
	}

	rows, err := conn.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query context: %w", err)
	}
	defer rows.Close()

	var target []T
	for rows.Next() {
		var t T
		if err := rows.StructScan(&t); err != nil {
			return nil, fmt.Errorf("struct scan: %w", err)
		}
		target = append(target, t)
	}
	return target, nil
}

// QueryNamedOne runs a named query expected to return a single row.
func QueryNamedOne[T any](ctx context.Context, conn dependency.DB, query string, params map[string]any) (T, error) {
	var target T
	q, args, err := sqlx.Named(query, params)
	if err != nil {
		return target, fmt.Errorf("named: %w", err)
	}
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return target, fmt.Errorf("sqlx in: %w", err)
	}

	row := conn.QueryRowxContext(ctx, q, args...)
	if err := row.Err(); err != nil {
		return target, fmt.Errorf("query row: %w", err)
	}

	if err := row.StructScan(&target); err != nil {
		return target, fmt.Errorf("struct scan: %w", err)
	}
	return target, nil
}
