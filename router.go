package switchyard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/adapter/selfhosted"
	"github.com/arloliu/switchyard/config"
	"github.com/arloliu/switchyard/relation"
	"github.com/arloliu/switchyard/types"
)

// Router serves every data operation from the configured primary store and
// replicates writes to the other enabled stores.
//
// The configuration is read once per operation, so switching the primary
// takes effect on the next call without restarting. Reads are served by the
// primary only. Writes complete on the primary before Execute returns; the
// copies to other stores are started in the background and their outcome is
// never returned to the caller.
//
// Thread Safety: Router is safe for concurrent use.
type Router struct {
	reader     *config.Reader
	managed    adapter.Adapter
	config     *RouterConfig
	secondary  *secondaryCache
	dispatcher *Dispatcher

	// ops is held shared by every operation and exclusively by Close, so
	// Close returns only after running operations have started their
	// replication.
	ops    sync.RWMutex
	closed atomic.Bool
}

// NewRouter creates a Router.
//
// Parameters:
//   - source: Where data source settings are read from; nil always selects managed
//   - managed: The managed store, always available as the fallback primary
//   - opts: Optional configuration options
//
// Returns:
//   - *Router: A new router
//   - error: types.ErrNilAdapter if managed is nil
func NewRouter(source config.Source, managed adapter.Adapter, opts ...Option) (*Router, error) {
	if managed == nil {
		return nil, types.ErrNilAdapter
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.normalize()

	r := &Router{
		reader:    config.NewReader(source, cfg.ConfigKey),
		managed:   managed,
		config:    cfg,
		secondary: newSecondaryCache(cfg.SecondaryOpener, cfg.Metrics, cfg.Logger),
	}
	r.dispatcher = newDispatcher(r.Adapter, cfg)

	return r, nil
}

// Settings loads the current data source settings.
//
// A missing, malformed or unreadable configuration is logged and counted,
// and nil is returned, which selects the managed store.
func (r *Router) Settings(ctx context.Context) *config.Settings {
	settings, err := r.reader.Load(ctx)
	if err != nil {
		r.config.Metrics.IncConfigFallback()
		r.config.Logger.Warn("data source configuration unavailable, using managed store",
			"key", r.reader.Key(),
			"error", err.Error(),
		)

		return nil
	}

	return settings
}

// SelectPrimary returns the store currently configured as primary.
func (r *Router) SelectPrimary(ctx context.Context) types.StoreKind {
	return config.SelectPrimary(r.Settings(ctx))
}

// Adapter returns the adapter of kind under settings.
//
// The managed adapter is the one passed to NewRouter. The self-hosted
// adapter is built per call from the settings and the proxy transport. The
// secondary adapter is cached and rebuilt only when its URL changes.
//
// Parameters:
//   - ctx: Context for constructing the secondary store
//   - kind: The store kind
//   - settings: Configuration snapshot, may be nil
//
// Returns:
//   - adapter.Adapter: The store adapter
//   - error: types.ErrStoreNotConfigured, types.ErrUnknownStoreKind or a construction error
func (r *Router) Adapter(ctx context.Context, kind types.StoreKind, settings *config.Settings) (adapter.Adapter, error) {
	switch kind {
	case types.KindManaged:
		return r.managed, nil

	case types.KindSelfHosted:
		if settings == nil || !settings.Configured(types.KindSelfHosted) {
			return nil, fmt.Errorf("%w: %s", types.ErrStoreNotConfigured, kind)
		}
		if r.config.Proxy == nil {
			return nil, fmt.Errorf("%w: %s has no proxy transport", types.ErrStoreNotConfigured, kind)
		}

		return selfhosted.New(r.config.Proxy, settings.SelfHostedTarget(),
			selfhosted.WithLogger(r.config.Logger))

	case types.KindSecondaryManaged:
		if settings == nil {
			return nil, fmt.Errorf("%w: %s", types.ErrStoreNotConfigured, kind)
		}

		return r.secondary.getOrBuild(ctx, settings.SecondaryManagedURL, settings.SecondaryManagedKey)

	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStoreKind, kind)
	}
}

// Execute runs op against the primary store.
//
// Reads return the primary's rows unmodified. Create and update return the
// row stored by the primary; delete returns no rows. After a successful
// write the other enabled stores receive one background replication attempt
// each; Execute does not wait for them.
//
// Parameters:
//   - ctx: Context for the primary call
//   - op: The operation
//
// Returns:
//   - types.Result: What the primary returned
//   - error: *types.PrimaryUnavailableError if the primary cannot be built or
//     fails, types.ErrRouterClosed after Close
func (r *Router) Execute(ctx context.Context, op types.Operation) (types.Result, error) {
	done, err := r.enter()
	if err != nil {
		return types.Result{}, err
	}
	defer done()

	settings := r.Settings(ctx)
	primary := config.SelectPrimary(settings)
	result := types.Result{Store: primary}

	a, err := r.Adapter(ctx, primary, settings)
	if err != nil {
		return result, r.primaryErr(primary, op, err)
	}

	if op.Action == types.ActionRead {
		rows, err := r.read(ctx, primary, a, op)
		if err != nil {
			return result, r.primaryErr(primary, op, err)
		}
		result.Rows = rows

		return result, nil
	}

	row, err := r.write(ctx, primary, a, op)
	if err != nil {
		return result, r.primaryErr(primary, op, err)
	}
	if row != nil {
		result.Rows = []types.Record{row}
	}

	r.dispatcher.Replicate(ctx, ReplicationRequest{
		Primary:      primary,
		Settings:     settings,
		Table:        op.Table,
		Action:       op.Action,
		ID:           op.ID,
		Record:       op.Record,
		Row:          row,
		RelationKeys: op.RelationKeys,
	})

	return result, nil
}

// Read returns the rows of table matching opts from the primary.
func (r *Router) Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error) {
	res, err := r.Execute(ctx, types.ReadOp(table, opts))
	if err != nil {
		return nil, err
	}

	return res.Rows, nil
}

// Create inserts rec on the primary and returns the stored row.
func (r *Router) Create(ctx context.Context, table string, rec types.Record, relationKeys ...string) (types.Record, error) {
	res, err := r.Execute(ctx, types.CreateOp(table, rec, relationKeys...))
	if err != nil {
		return nil, err
	}

	return res.Row(), nil
}

// Update changes the row with id on the primary and returns the stored row.
func (r *Router) Update(ctx context.Context, table string, id any, rec types.Record, relationKeys ...string) (types.Record, error) {
	res, err := r.Execute(ctx, types.UpdateOp(table, id, rec, relationKeys...))
	if err != nil {
		return nil, err
	}

	return res.Row(), nil
}

// Delete removes the row with id on the primary.
func (r *Router) Delete(ctx context.Context, table string, id any, relationKeys ...string) error {
	_, err := r.Execute(ctx, types.DeleteOp(table, id, relationKeys...))

	return err
}

// RawQuery runs a SELECT against the primary if it supports raw statements.
//
// Returns:
//   - []types.Record: The rows
//   - types.StoreKind: The primary that served the query
//   - error: types.ErrUnsupported wrapped in *types.PrimaryUnavailableError if
//     the primary has no raw query support
func (r *Router) RawQuery(ctx context.Context, sql string, params ...any) ([]types.Record, types.StoreKind, error) {
	return r.rawQuery(ctx, r.Settings(ctx), sql, params...)
}

// RawQueryOn runs a SELECT written for kind, but only if kind is the
// primary.
//
// The settings are read once, so the statement never reaches a store whose
// dialect it was not written for.
//
// Returns:
//   - []types.Record: The rows
//   - types.StoreKind: The primary the settings selected
//   - error: types.ErrPrimaryMismatch if another store is primary, else as RawQuery
func (r *Router) RawQueryOn(ctx context.Context, kind types.StoreKind, sql string, params ...any) ([]types.Record, types.StoreKind, error) {
	if r.closed.Load() {
		return nil, "", types.ErrRouterClosed
	}

	settings := r.Settings(ctx)
	if primary := config.SelectPrimary(settings); primary != kind {
		return nil, primary, fmt.Errorf("%w: %s is primary, not %s", types.ErrPrimaryMismatch, primary, kind)
	}

	return r.rawQuery(ctx, settings, sql, params...)
}

func (r *Router) rawQuery(ctx context.Context, settings *config.Settings, sql string, params ...any) ([]types.Record, types.StoreKind, error) {
	done, err := r.enter()
	if err != nil {
		return nil, "", err
	}
	defer done()

	primary := config.SelectPrimary(settings)
	op := types.Operation{Action: types.ActionRead, Table: "raw"}

	a, err := r.Adapter(ctx, primary, settings)
	if err != nil {
		return nil, primary, r.primaryErr(primary, op, err)
	}
	rq, ok := a.(adapter.RawQuerier)
	if !ok {
		return nil, primary, r.primaryErr(primary, op, types.ErrUnsupported)
	}

	rows, err := r.read(ctx, primary, readFunc(func(ctx context.Context) ([]types.Record, error) {
		return rq.RawQuery(ctx, sql, params...)
	}), op)
	if err != nil {
		return nil, primary, r.primaryErr(primary, op, err)
	}

	return rows, primary, nil
}

// PingResult is the connection test outcome of one store.
type PingResult struct {
	Kind    types.StoreKind
	Primary bool
	Latency time.Duration
	Err     error
}

// Ping tests the connection of the primary and every enabled store.
//
// Stores without a connection test report types.ErrUnsupported. A closed
// router returns no results.
func (r *Router) Ping(ctx context.Context) []PingResult {
	done, err := r.enter()
	if err != nil {
		return nil
	}
	defer done()

	settings := r.Settings(ctx)
	descriptors := settings.Descriptors()

	out := make([]PingResult, 0, len(descriptors))
	for _, d := range descriptors {
		if !d.Primary && !d.Enabled {
			continue
		}

		res := PingResult{Kind: d.Kind, Primary: d.Primary}
		start := time.Now()
		a, err := r.Adapter(ctx, d.Kind, settings)
		if err == nil {
			if p, ok := a.(adapter.Pinger); ok {
				err = p.Ping(ctx)
			} else {
				err = types.ErrUnsupported
			}
		}
		res.Latency = time.Since(start)
		res.Err = err
		out = append(out, res)
	}

	return out
}

// Wait blocks until all started replication attempts have finished.
func (r *Router) Wait() {
	r.dispatcher.Wait()
}

// Close rejects further operations, waits for running operations and the
// replication they started, and releases the cached secondary store.
//
// The managed adapter passed to NewRouter is owned by the caller.
func (r *Router) Close() error {
	r.ops.Lock()
	already := r.closed.Swap(true)
	r.ops.Unlock()
	if already {
		return nil
	}
	r.dispatcher.Wait()

	return r.secondary.close()
}

// IsClosed reports whether Close has been called.
func (r *Router) IsClosed() bool {
	return r.closed.Load()
}

// enter admits one operation. The returned func must be called when the
// operation, including starting its replication, is complete.
func (r *Router) enter() (func(), error) {
	r.ops.RLock()
	if r.closed.Load() {
		r.ops.RUnlock()
		return nil, types.ErrRouterClosed
	}

	return r.ops.RUnlock, nil
}

// reader is the read half of an adapter.
type reader interface {
	Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error)
}

type readFunc func(ctx context.Context) ([]types.Record, error)

func (f readFunc) Read(ctx context.Context, _ string, _ types.ReadOptions) ([]types.Record, error) {
	return f(ctx)
}

func (r *Router) read(ctx context.Context, primary types.StoreKind, a reader, op types.Operation) ([]types.Record, error) {
	start := time.Now()
	rows, err := a.Read(ctx, op.Table, op.Read)

	r.config.Metrics.IncReadTotal(primary)
	r.config.Metrics.ObserveReadDuration(primary, time.Since(start).Seconds())
	if err != nil {
		r.config.Metrics.IncReadError(primary)
	}

	return rows, err
}

func (r *Router) write(ctx context.Context, primary types.StoreKind, a adapter.Adapter, op types.Operation) (types.Record, error) {
	rec := relation.Strip(op.Record, op.RelationKeys)

	start := time.Now()
	var (
		row types.Record
		err error
	)
	switch op.Action {
	case types.ActionCreate:
		row, err = a.InsertReturning(ctx, op.Table, rec)
	case types.ActionUpdate:
		row, err = a.UpdateReturning(ctx, op.Table, op.ID, rec)
	case types.ActionDelete:
		err = a.Delete(ctx, op.Table, op.ID)
	default:
		err = fmt.Errorf("%w: action %q", types.ErrUnsupported, op.Action)
	}

	r.config.Metrics.IncWriteTotal(primary)
	r.config.Metrics.ObserveWriteDuration(primary, time.Since(start).Seconds())
	if err != nil {
		r.config.Metrics.IncWriteError(primary)
	}

	return row, err
}

// primaryErr wraps a primary failure. Query build errors are the caller's
// and pass through unwrapped.
func (r *Router) primaryErr(primary types.StoreKind, op types.Operation, err error) error {
	if errors.Is(err, types.ErrQueryBuild) {
		return err
	}

	pe := &types.PrimaryUnavailableError{
		Store:     primary,
		Operation: string(op.Action) + " " + op.Table,
		Cause:     err,
	}
	r.config.Logger.Error("primary operation failed",
		"store", primary.String(),
		"operation", pe.Operation,
		"error", err.Error(),
	)

	return pe
}
