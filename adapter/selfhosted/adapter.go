// Package selfhosted implements the self-hosted SQL store.
//
// The store is never dialed directly. Every statement is built with the
// querybuilder package and sent through a proxy.Executor together with the
// connection parameters of the target database.
package selfhosted

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/types"
)

// pingQuery is the connectivity probe sent by Ping.
const pingQuery = "SELECT 1 as connected"

// Adapter is the self-hosted store reached through the query proxy.
//
// Thread Safety: Adapter holds no mutable state and is safe for concurrent use.
type Adapter struct {
	exec   proxy.Executor
	target proxy.Target
	logger types.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for statement diagnostics.
func WithLogger(l types.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// Compile-time assertions that Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter           = (*Adapter)(nil)
	_ adapter.StatementExecutor = (*Adapter)(nil)
	_ adapter.RawQuerier        = (*Adapter)(nil)
	_ adapter.Pinger            = (*Adapter)(nil)
)

// New creates a self-hosted adapter.
//
// Parameters:
//   - exec: Proxy transport
//   - target: Connection parameters; host is sanitized and port defaulted
//   - opts: Optional configuration
//
// Returns:
//   - *Adapter: The adapter
//   - error: types.ErrNilAdapter if exec is nil, types.ErrStoreNotConfigured
//     if target lacks host, user, password or database
func New(exec proxy.Executor, target proxy.Target, opts ...Option) (*Adapter, error) {
	if exec == nil {
		return nil, fmt.Errorf("%w: proxy executor", types.ErrNilAdapter)
	}
	if !target.Configured() {
		return nil, fmt.Errorf("%w: %s", types.ErrStoreNotConfigured, types.KindSelfHosted)
	}

	a := &Adapter{
		exec:   exec,
		target: target.Sanitized(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.Or(a.logger)

	return a, nil
}

// Kind returns types.KindSelfHosted.
func (a *Adapter) Kind() types.StoreKind {
	return types.KindSelfHosted
}

// Target returns the sanitized connection parameters.
func (a *Adapter) Target() proxy.Target {
	return a.target
}

// Read runs a SELECT built from opts. Joins are ignored.
func (a *Adapter) Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error) {
	stmt, err := querybuilder.BuildSelect(table, opts)
	if err != nil {
		return nil, err
	}

	resp, err := a.send(ctx, "read "+table, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}

	return rows(resp), nil
}

// InsertReturning inserts rec and reads the stored row back.
//
// A record without an id takes the auto-increment id reported by the proxy.
// If the row cannot be read back the written values are returned.
func (a *Adapter) InsertReturning(ctx context.Context, table string, rec types.Record) (types.Record, error) {
	stmt, err := querybuilder.BuildInsert(table, rec)
	if err != nil {
		return nil, err
	}

	resp, err := a.send(ctx, "insert "+table, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}

	written := withoutUnset(rec)
	id, ok := written.ID()
	if !ok {
		if resp.LastInsertID == 0 {
			return written, nil
		}
		id = resp.LastInsertID
		written["id"] = id
	}

	row, err := a.selectByID(ctx, table, id)
	if err != nil {
		a.logger.Debug("self-hosted read-back after insert failed",
			"table", table,
			"error", err,
		)

		return written, nil
	}

	return row, nil
}

// UpdateReturning updates the row with id and reads it back.
//
// Returns types.ErrNotFound if the row does not exist after the update.
func (a *Adapter) UpdateReturning(ctx context.Context, table string, id any, rec types.Record) (types.Record, error) {
	stmt, err := querybuilder.BuildUpdate(table, rec, id)
	if err != nil {
		return nil, err
	}

	if _, err := a.send(ctx, "update "+table, stmt.SQL, stmt.Params); err != nil {
		return nil, err
	}

	return a.selectByID(ctx, table, id)
}

// Upsert inserts rec or updates the row with the same id.
func (a *Adapter) Upsert(ctx context.Context, table string, rec types.Record) error {
	stmt, err := querybuilder.BuildUpsert(table, rec)
	if err != nil {
		return err
	}

	_, err = a.send(ctx, "upsert "+table, stmt.SQL, stmt.Params)

	return err
}

// Delete removes the row with id.
func (a *Adapter) Delete(ctx context.Context, table string, id any) error {
	stmt, err := querybuilder.BuildDelete(table, id)
	if err != nil {
		return err
	}

	_, err = a.send(ctx, "delete "+table, stmt.SQL, stmt.Params)

	return err
}

// Exec sends a prebuilt statement.
func (a *Adapter) Exec(ctx context.Context, stmt querybuilder.Statement) (adapter.ExecResult, error) {
	resp, err := a.send(ctx, "exec", stmt.SQL, stmt.Params)
	if err != nil {
		return adapter.ExecResult{}, err
	}

	return adapter.ExecResult{
		RowsAffected: resp.AffectedRows,
		LastInsertID: resp.LastInsertID,
	}, nil
}

// RawQuery runs an arbitrary statement and returns its rows.
func (a *Adapter) RawQuery(ctx context.Context, sql string, params ...any) ([]types.Record, error) {
	norm := make([]any, len(params))
	for i, p := range params {
		norm[i] = querybuilder.NormalizeParam(p)
	}

	resp, err := a.send(ctx, "query", sql, norm)
	if err != nil {
		return nil, err
	}

	return rows(resp), nil
}

// Ping checks that the proxy can reach the database.
func (a *Adapter) Ping(ctx context.Context) error {
	resp, err := a.send(ctx, "ping", pingQuery, nil)
	if err != nil {
		return err
	}
	if len(resp.Data) == 0 {
		return &types.StoreError{
			Store:     types.KindSelfHosted,
			Operation: "ping",
			Cause:     errors.New("connection test returned no rows"),
		}
	}

	return nil
}

func (a *Adapter) selectByID(ctx context.Context, table string, id any) (types.Record, error) {
	stmt, err := querybuilder.BuildSelect(table, types.ReadOptions{
		Filters: []types.Filter{types.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}

	resp, err := a.send(ctx, "read "+table, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s id=%v", types.ErrNotFound, table, id)
	}

	return resp.Data[0], nil
}

func (a *Adapter) send(ctx context.Context, op, query string, params []any) (*proxy.Response, error) {
	resp, err := a.exec.Execute(ctx, proxy.Request{
		Target: a.target,
		Query:  query,
		Params: params,
	})
	if err != nil {
		return nil, &types.StoreError{Store: types.KindSelfHosted, Operation: op, Cause: err}
	}

	return resp, nil
}

func rows(resp *proxy.Response) []types.Record {
	if resp.Data == nil {
		return []types.Record{}
	}

	return resp.Data
}

func withoutUnset(rec types.Record) types.Record {
	out := make(types.Record, len(rec))
	for k, v := range rec {
		if _, skip := v.(types.Unset); skip {
			continue
		}
		out[k] = v
	}

	return out
}
