// Package sql provides database/sql handles for the query-execution proxy.
//
// The proxy owns the network connections to self-hosted databases. This
// package wraps *sql.DB behind a small interface, pools handles per DSN and
// runs single statements, turning result sets into records.
//
// Limitations:
//   - Single-statement non-transactional operations only
//   - Result values are returned as the driver reports them, with []byte
//     converted to string
package sql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/arloliu/switchyard/types"
)

// DB represents a database connection the proxy executes statements on.
//
// This interface wraps *sql.DB so tests can substitute their own handles.
type DB interface {
	// ExecContext executes a query without returning any rows.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// QueryContext executes a query that returns rows.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// PingContext verifies the connection is alive.
	PingContext(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// WrapDB wraps a *sql.DB as a DB.
//
// Parameters:
//   - db: The underlying sql.DB to wrap
//
// Returns:
//   - DB: An adapter implementing the DB interface
func WrapDB(db *sql.DB) DB {
	return &dbAdapter{db: db}
}

type dbAdapter struct {
	db *sql.DB
}

func (a *dbAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

func (a *dbAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

func (a *dbAdapter) PingContext(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *dbAdapter) Close() error {
	return a.db.Close()
}

// Outcome is the result of running one statement.
type Outcome struct {
	// Rows holds the result set of a query. Nil for statements without rows.
	Rows []types.Record

	// RowsAffected is set for statements without rows.
	RowsAffected int64

	// LastInsertID is set for INSERT statements on tables with auto-increment keys.
	LastInsertID int64
}

// Run executes query on db, choosing between QueryContext and ExecContext
// based on the leading keyword.
//
// Parameters:
//   - ctx: Context for the call
//   - db: Target database
//   - query: SQL statement with "?" placeholders
//   - args: Positional parameters
//
// Returns:
//   - Outcome: Rows for queries, counters for other statements
//   - error: Driver error
func Run(ctx context.Context, db DB, query string, args ...any) (Outcome, error) {
	if ReturnsRows(query) {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return Outcome{}, err
		}
		defer rows.Close()

		records, err := ScanRecords(rows)
		if err != nil {
			return Outcome{}, err
		}

		return Outcome{Rows: records}, nil
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	// Drivers may not support either counter; zero is reported in that case.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}

	return out, nil
}

// ReturnsRows reports whether the statement produces a result set.
func ReturnsRows(query string) bool {
	q := strings.TrimLeft(query, " \t\r\n(")
	word := q
	if i := strings.IndexAny(q, " \t\r\n("); i >= 0 {
		word = q[:i]
	}

	switch strings.ToUpper(word) {
	case "SELECT", "SHOW", "WITH", "DESCRIBE", "DESC", "EXPLAIN", "VALUES":
		return true
	default:
		return false
	}
}

// ScanRecords reads every row into a record keyed by column name.
//
// The caller remains responsible for closing rows.
func ScanRecords(rows *sql.Rows) ([]types.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := make([]types.Record, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(types.Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = values[i]
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
