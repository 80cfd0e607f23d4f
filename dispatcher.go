package switchyard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/config"
	"github.com/arloliu/switchyard/policy"
	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/relation"
	"github.com/arloliu/switchyard/types"
)

// AdapterFactory resolves the store adapter of kind under settings.
type AdapterFactory func(ctx context.Context, kind types.StoreKind, settings *config.Settings) (adapter.Adapter, error)

// ReplicationRequest is a primary write to copy to the other enabled stores.
type ReplicationRequest struct {
	// Primary is the store that accepted the write. It is never a target.
	Primary types.StoreKind

	// Settings is the configuration snapshot the primary was selected from.
	Settings *config.Settings

	Table  string
	Action types.Action
	ID     any

	// Record is the caller's payload.
	Record types.Record

	// Row is the row returned by the primary, if any.
	Row types.Record

	// RelationKeys are removed from every replica payload.
	RelationKeys []string
}

// ReplicationOutcome is the result of one replication attempt.
type ReplicationOutcome struct {
	Target   types.StoreKind
	Table    string
	Action   types.Action
	Err      error
	Duration time.Duration
}

// Dispatcher fans primary writes out to the other enabled stores.
//
// Every target gets at most one attempt, run on its own goroutine with its
// own recover boundary and a context detached from the caller. Failures are
// logged, counted and reported to the notifier; they never reach the caller.
type Dispatcher struct {
	factory AdapterFactory
	config  *RouterConfig
	limiter *policy.Limiter
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher resolving targets through factory.
//
// Parameters:
//   - factory: Resolves a target kind to its adapter
//   - opts: Optional configuration options, see Option
//
// Returns:
//   - *Dispatcher: A new dispatcher
func NewDispatcher(factory AdapterFactory, opts ...Option) *Dispatcher {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.normalize()

	return newDispatcher(factory, cfg)
}

func newDispatcher(factory AdapterFactory, cfg *RouterConfig) *Dispatcher {
	return &Dispatcher{
		factory: factory,
		config:  cfg,
		limiter: policy.NewLimiter(cfg.MaxInFlight),
	}
}

// Replicate starts one attempt per enabled target other than the primary
// and returns without waiting for them.
//
// Parameters:
//   - ctx: Caller context; only its values are kept, cancellation is ignored
//   - req: The write to replicate
//
// Returns:
//   - []types.StoreKind: The targets an attempt was started or dropped for
func (d *Dispatcher) Replicate(ctx context.Context, req ReplicationRequest) []types.StoreKind {
	if !req.Action.IsWrite() {
		return nil
	}

	targets := req.Settings.Targets(req.Primary)
	if len(targets) == 0 {
		return nil
	}

	req.Record = relation.Strip(req.Record, req.RelationKeys)
	req.Row = relation.Strip(req.Row, req.RelationKeys)

	detached := context.WithoutCancel(ctx)
	for _, target := range targets {
		// Allow may hand out the single half-open probe, so it is only
		// asked once a slot is held.
		if !d.limiter.TryAcquire() {
			d.drop(req, target, "in-flight limit reached")
			continue
		}
		if b := d.config.Breaker; b != nil && !b.Allow(target) {
			d.limiter.Release()
			d.drop(req, target, "target breaker open")
			continue
		}
		d.config.Metrics.SetReplicationInFlight(d.limiter.InFlight())

		d.wg.Go(func() {
			defer func() {
				d.limiter.Release()
				d.config.Metrics.SetReplicationInFlight(d.limiter.InFlight())
			}()
			d.attempt(detached, req, target)
		})
	}

	return targets
}

// Wait blocks until every started attempt has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// InFlight returns the number of attempts currently running.
func (d *Dispatcher) InFlight() int {
	return d.limiter.InFlight()
}

func (d *Dispatcher) attempt(ctx context.Context, req ReplicationRequest, target types.StoreKind) {
	start := time.Now()
	err := d.run(ctx, req, target)
	elapsed := time.Since(start)

	m := d.config.Metrics
	m.IncReplicationTotal(target)
	m.ObserveReplicationDuration(target, elapsed.Seconds())

	if err != nil {
		if b := d.config.Breaker; b != nil {
			b.RecordFailure(target)
		}
		re := &types.ReplicationError{
			Primary: req.Primary,
			Target:  target,
			Table:   req.Table,
			Action:  req.Action,
			Cause:   err,
		}
		d.report(re, req, target)
		err = re
	} else {
		if b := d.config.Breaker; b != nil {
			b.RecordSuccess(target)
		}
		d.config.Logger.Debug("replicated write",
			"target", target.String(),
			"table", req.Table,
			"action", string(req.Action),
			"duration", elapsed.String(),
		)
	}

	d.emit(ReplicationOutcome{
		Target:   target,
		Table:    req.Table,
		Action:   req.Action,
		Err:      err,
		Duration: elapsed,
	})
}

// run performs the write against target. Panics become errors.
func (d *Dispatcher) run(ctx context.Context, req ReplicationRequest, target types.StoreKind) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during replication: %v", r)
		}
	}()

	if d.config.ReplicationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ReplicationTimeout)
		defer cancel()
	}

	a, err := d.factory(ctx, target, req.Settings)
	if err != nil {
		return err
	}

	if exec, ok := a.(adapter.StatementExecutor); ok && target == types.KindSelfHosted {
		stmt, err := statement(req)
		if err != nil {
			return err
		}
		_, err = exec.Exec(ctx, stmt)

		return err
	}

	switch req.Action {
	case types.ActionDelete:
		return a.Delete(ctx, req.Table, req.ID)
	default:
		return a.Upsert(ctx, req.Table, upsertRow(req))
	}
}

// statement builds the self-hosted statement replicating req.
func statement(req ReplicationRequest) (querybuilder.Statement, error) {
	switch req.Action {
	case types.ActionCreate:
		return querybuilder.BuildInsert(req.Table, createRow(req))
	case types.ActionUpdate:
		return querybuilder.BuildUpdate(req.Table, req.Record, req.ID)
	case types.ActionDelete:
		return querybuilder.BuildDelete(req.Table, req.ID)
	default:
		return querybuilder.Statement{}, &types.QueryBuildError{
			Table:  req.Table,
			Reason: "unsupported action " + string(req.Action),
		}
	}
}

// createRow prefers the primary's row, which carries the generated id.
func createRow(req ReplicationRequest) types.Record {
	if req.Row != nil {
		return req.Row
	}

	return req.Record
}

// upsertRow returns the full row to upsert by primary key.
func upsertRow(req ReplicationRequest) types.Record {
	row := createRow(req).Clone()
	if row == nil {
		row = types.Record{}
	}
	if _, ok := row.ID(); !ok && req.ID != nil {
		row["id"] = req.ID
	}

	return row
}

func (d *Dispatcher) drop(req ReplicationRequest, target types.StoreKind, reason string) {
	err := &types.ReplicationError{
		Primary: req.Primary,
		Target:  target,
		Table:   req.Table,
		Action:  req.Action,
		Cause:   fmt.Errorf("%w: %s", types.ErrReplicationDropped, reason),
	}

	d.config.Metrics.IncReplicationDropped(target)
	d.report(err, req, target)
	d.emit(ReplicationOutcome{Target: target, Table: req.Table, Action: req.Action, Err: err})
}

// report logs a failed attempt and notifies the user.
func (d *Dispatcher) report(err *types.ReplicationError, req ReplicationRequest, target types.StoreKind) {
	d.config.Metrics.IncReplicationError(target)
	d.config.Logger.Error("replication failed",
		"primary", req.Primary.String(),
		"target", target.String(),
		"table", req.Table,
		"action", string(req.Action),
		"error", err.Cause.Error(),
	)
	d.config.Notifier.Notify(
		fmt.Sprintf("Primary write succeeded; replication to %s failed: %v", target, err.Cause),
		types.LevelWarning,
	)
}

func (d *Dispatcher) emit(o ReplicationOutcome) {
	if d.config.OnReplicationOutcome != nil {
		d.config.OnReplicationOutcome(o)
	}
}
