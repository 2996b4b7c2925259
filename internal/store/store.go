// Package store implements persistence for assets, movements, discrepancies
// and the supporting entities on top of database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Errors returned by store operations. Handlers map them to HTTP statuses.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// ValidationError reports a request that breaks a business rule.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// text scans a nullable TEXT column, mapping NULL to "".
type text struct{ dst *string }

func (t text) Scan(src any) error {
	var ns sql.NullString
	if err := ns.Scan(src); err != nil {
		return err
	}
	*t.dst = ns.String
	return nil
}

// Page selects a window of a list result. Page is 1-indexed.
type Page struct {
	Page  int
	Limit int
}

func (p Page) offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// clause appends "LIMIT ? OFFSET ?" when a limit is set.
func (p Page) clause(query string, args []any) (string, []any) {
	if p.Limit <= 0 {
		return query, args
	}
	return query + ` LIMIT ? OFFSET ?`, append(args, p.Limit, p.offset())
}

// DateRange filters on a timestamp column. Zero bounds are ignored.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) where(column, query string, args []any) (string, []any) {
	if !r.From.IsZero() {
		query += ` AND ` + column + ` >= ?`
		args = append(args, r.From.UTC())
	}
	if !r.To.IsZero() {
		query += ` AND ` + column + ` <= ?`
		args = append(args, r.To.UTC())
	}
	return query, args
}

func count(ctx context.Context, q DBTX, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM (`+query+`)`, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// nullString stores empty strings as NULL so partial unique indexes ignore them.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func now() time.Time {
	return time.Now().UTC()
}
