package store

import (
	"context"
	"fmt"

	perr "seochecker/internal/platform/errors"
)

// Scanner maps the current row into T
type Scanner[T any] func(Row) (T, error)

// Scalar reads the first column of the first row
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// One reads exactly one row; no rows is perr.ErrNotFound, more than one is an error
func One[T any](ctx context.Context, q RowQuerier, scan Scanner[T], sql string, args ...any) (T, error) {
	var zero T
	items, err := collect(ctx, q, scan, 2, sql, args...)
	switch {
	case err != nil:
		return zero, err
	case len(items) == 0:
		return zero, perr.ErrNotFound
	case len(items) > 1:
		return zero, fmt.Errorf("expected 1 row, got more")
	}
	return items[0], nil
}

// Many reads every row
func Many[T any](ctx context.Context, q RowQuerier, scan Scanner[T], sql string, args ...any) ([]T, error) {
	return collect(ctx, q, scan, 0, sql, args...)
}

// collect scans rows until limit (0 = all) and reports the iterator error
func collect[T any](ctx context.Context, q RowQuerier, scan Scanner[T], limit int, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}
