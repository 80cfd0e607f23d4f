// Package adapter defines the uniform capability set every backend store
// exposes to the router.
//
// Implementations live in sub-packages:
//
//   - adapter/managed: the managed cloud store and its secondary instance (GORM)
//   - adapter/selfhosted: the self-hosted SQL database behind the query proxy
//   - adapter/sql: database/sql handles used by the proxy server itself
package adapter

import (
	"context"

	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/types"
)

// Adapter is a backend store.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// Replication attempts for the same write may call different adapters
// concurrently, and the router never serializes calls.
type Adapter interface {
	// Kind returns the store kind this adapter serves.
	Kind() types.StoreKind

	// Read returns the rows of table matching opts.
	Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error)

	// InsertReturning inserts rec and returns the stored row.
	InsertReturning(ctx context.Context, table string, rec types.Record) (types.Record, error)

	// UpdateReturning updates the row with id and returns the stored row.
	//
	// Returns types.ErrNotFound if no such row exists.
	UpdateReturning(ctx context.Context, table string, id any, rec types.Record) (types.Record, error)

	// Upsert inserts rec or replaces the non-key columns of the row with the same id.
	Upsert(ctx context.Context, table string, rec types.Record) error

	// Delete removes the row with id. Deleting a missing row is not an error.
	Delete(ctx context.Context, table string, id any) error
}

// StatementExecutor is implemented by adapters that accept prebuilt statements.
//
// The self-hosted adapter implements it; the dispatcher uses it to send
// builder output straight to the proxy.
type StatementExecutor interface {
	Exec(ctx context.Context, stmt querybuilder.Statement) (ExecResult, error)
}

// RawQuerier is implemented by adapters that can run arbitrary SELECT statements.
type RawQuerier interface {
	RawQuery(ctx context.Context, sql string, params ...any) ([]types.Record, error)
}

// Pinger is implemented by adapters that can test their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExecResult summarizes a statement that returned no rows.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}
