// Package managed implements the managed relational store and its secondary
// instance on top of GORM.
//
// Both stores speak the same protocol; the only difference between them is
// the StoreKind they report and the DSN they were opened with. Rows are
// handled as maps, so no model structs or migrations are involved.
package managed

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/types"
)

// Adapter is a GORM-backed store.
//
// Thread Safety: *gorm.DB sessions are safe for concurrent use, and Adapter
// keeps no other mutable state.
type Adapter struct {
	db    *gorm.DB
	kind  types.StoreKind
	idGen func() any
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithKind sets the store kind the adapter reports. Defaults to types.KindManaged.
func WithKind(kind types.StoreKind) Option {
	return func(a *Adapter) {
		a.kind = kind
	}
}

// WithIDGenerator sets how ids are assigned to inserted records without one.
// Defaults to random UUID strings.
func WithIDGenerator(fn func() any) Option {
	return func(a *Adapter) {
		a.idGen = fn
	}
}

// Compile-time assertions that Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.RawQuerier = (*Adapter)(nil)
	_ adapter.Pinger     = (*Adapter)(nil)
)

// New wraps an open GORM handle.
func New(db *gorm.DB, opts ...Option) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: gorm handle", types.ErrNilAdapter)
	}

	a := &Adapter{
		db:    db,
		kind:  types.KindManaged,
		idGen: func() any { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Kind returns the configured store kind.
func (a *Adapter) Kind() types.StoreKind {
	return a.kind
}

// DB returns the underlying GORM handle.
func (a *Adapter) DB() *gorm.DB {
	return a.db
}

// Read returns the rows of table matching opts with joined rows embedded.
//
// Each join adds one query fetching the related rows whose foreign key is
// referenced by the result; rows without a match embed nil.
func (a *Adapter) Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error) {
	q := a.db.WithContext(ctx).Table(table)
	if len(opts.Columns) > 0 {
		cols := slices.Clone(opts.Columns)
		for _, j := range opts.Joins {
			if !slices.Contains(cols, j.LocalKey) {
				cols = append(cols, j.LocalKey)
			}
		}
		q = q.Select(cols)
	}

	for _, f := range opts.Filters {
		expr, err := filterExpr(table, f)
		if err != nil {
			return nil, err
		}
		q = q.Where(expr)
	}
	for _, o := range opts.Order {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Descending})
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var found []map[string]any
	if err := q.Find(&found).Error; err != nil {
		return nil, a.storeErr("read "+table, err)
	}

	out := toRecords(found)
	for _, j := range opts.Joins {
		if err := a.embed(ctx, out, j); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// InsertReturning inserts rec, assigning an id when missing, and returns the stored row.
func (a *Adapter) InsertReturning(ctx context.Context, table string, rec types.Record) (types.Record, error) {
	row := values(rec)
	id, ok := types.Record(row).ID()
	if !ok {
		id = a.idGen()
		row["id"] = id
	}

	if err := a.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return nil, a.storeErr("insert "+table, err)
	}

	return a.take(ctx, table, id)
}

// UpdateReturning updates the row with id and returns it.
//
// The id and created_at columns are never modified.
func (a *Adapter) UpdateReturning(ctx context.Context, table string, id any, rec types.Record) (types.Record, error) {
	row := values(rec)
	delete(row, "id")
	delete(row, "created_at")

	if len(row) > 0 {
		err := a.db.WithContext(ctx).Table(table).Where(idEq(id)).Updates(row).Error
		if err != nil {
			return nil, a.storeErr("update "+table, err)
		}
	}

	return a.take(ctx, table, id)
}

// Upsert inserts rec or overwrites the non-key columns of the row with the same id.
func (a *Adapter) Upsert(ctx context.Context, table string, rec types.Record) error {
	row := values(rec)
	if _, ok := types.Record(row).ID(); !ok {
		return &types.QueryBuildError{Table: table, Reason: "upsert requires an id"}
	}

	update := make([]string, 0, len(row))
	for k := range row {
		if k != "id" && k != "created_at" {
			update = append(update, k)
		}
	}
	slices.Sort(update)

	tx := a.db.WithContext(ctx).Table(table)
	if len(update) == 0 {
		// Nothing to overwrite: an existing row is left as is, and a missing
		// one is inserted with its id alone.
		var n int64
		if err := tx.Where(idEq(row["id"])).Count(&n).Error; err != nil {
			return a.storeErr("upsert "+table, err)
		}
		if n > 0 {
			return nil
		}

		if err := a.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
			return a.storeErr("upsert "+table, err)
		}

		return nil
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(update),
	}
	err := tx.Clauses(onConflict).Create(row).Error
	if err != nil {
		return a.storeErr("upsert "+table, err)
	}

	return nil
}

// Delete removes the row with id.
func (a *Adapter) Delete(ctx context.Context, table string, id any) error {
	err := a.db.WithContext(ctx).
		Exec("DELETE FROM ? WHERE ?", clause.Table{Name: table}, idEq(id)).Error
	if err != nil {
		return a.storeErr("delete "+table, err)
	}

	return nil
}

// RawQuery runs sql with params and returns its rows.
func (a *Adapter) RawQuery(ctx context.Context, sql string, params ...any) ([]types.Record, error) {
	var found []map[string]any
	if err := a.db.WithContext(ctx).Raw(sql, params...).Scan(&found).Error; err != nil {
		return nil, a.storeErr("query", err)
	}

	return toRecords(found), nil
}

// Ping checks the database connection.
func (a *Adapter) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return a.storeErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return a.storeErr("ping", err)
	}

	return nil
}

// Close closes the underlying connection pool.
func (a *Adapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (a *Adapter) take(ctx context.Context, table string, id any) (types.Record, error) {
	var row map[string]any
	err := a.db.WithContext(ctx).Table(table).Where(idEq(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s id=%v", types.ErrNotFound, table, id)
	}
	if err != nil {
		return nil, a.storeErr("read "+table, err)
	}

	return toRecord(row), nil
}

// embed attaches the related row of j to every row in rows.
func (a *Adapter) embed(ctx context.Context, rows []types.Record, j types.Join) error {
	keys := make([]any, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		v := r[j.LocalKey]
		if v == nil {
			continue
		}
		k := fmt.Sprint(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}

	related := make(map[string]types.Record, len(keys))
	if len(keys) > 0 {
		q := a.db.WithContext(ctx).Table(j.Table).
			Where(clause.IN{Column: clause.Column{Name: j.Foreign()}, Values: keys})
		if len(j.Columns) > 0 {
			cols := slices.Clone(j.Columns)
			if !slices.Contains(cols, j.Foreign()) {
				cols = append(cols, j.Foreign())
			}
			q = q.Select(cols)
		}

		var found []map[string]any
		if err := q.Find(&found).Error; err != nil {
			return a.storeErr("read "+j.Table, err)
		}
		for _, m := range found {
			rec := toRecord(m)
			related[fmt.Sprint(rec[j.Foreign()])] = rec
		}
	}

	for _, r := range rows {
		var match types.Record
		if v := r[j.LocalKey]; v != nil {
			match = related[fmt.Sprint(v)]
		}
		if match != nil && len(j.Columns) > 0 && !slices.Contains(j.Columns, j.Foreign()) {
			match = match.Clone()
			delete(match, j.Foreign())
		}
		if match == nil {
			r[j.Alias()] = nil
		} else {
			r[j.Alias()] = match
		}
	}

	return nil
}

func (a *Adapter) storeErr(op string, err error) error {
	return &types.StoreError{Store: a.kind, Operation: op, Cause: err}
}

// filterExpr converts a read filter into a GORM clause expression.
func filterExpr(table string, f types.Filter) (clause.Expression, error) {
	col := clause.Column{Name: f.Column}
	switch f.Op {
	case types.OpEq:
		return clause.Eq{Column: col, Value: f.Value}, nil
	case types.OpNeq:
		return clause.Neq{Column: col, Value: f.Value}, nil
	case types.OpGte:
		return clause.Gte{Column: col, Value: f.Value}, nil
	case types.OpLte:
		return clause.Lte{Column: col, Value: f.Value}, nil
	case types.OpIlike:
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []any{col, f.Value}}, nil
	case types.OpOr:
		if len(f.Any) == 0 {
			return nil, &types.QueryBuildError{Table: table, Reason: "or filter without alternatives"}
		}
		exprs := make([]clause.Expression, len(f.Any))
		for i, alt := range f.Any {
			e, err := filterExpr(table, alt)
			if err != nil {
				return nil, err
			}
			exprs[i] = e
		}
		return clause.Or(exprs...), nil
	default:
		return nil, &types.QueryBuildError{Table: table, Reason: fmt.Sprintf("unsupported filter operator %q", f.Op)}
	}
}

func idEq(id any) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "id"}, Value: id}
}

// values copies rec into a plain map without undefined fields.
func values(rec types.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if _, skip := v.(types.Unset); skip {
			continue
		}
		out[k] = v
	}

	return out
}

func toRecords(rows []map[string]any) []types.Record {
	out := make([]types.Record, len(rows))
	for i, m := range rows {
		out[i] = toRecord(m)
	}

	return out
}

// toRecord copies a scanned row. Raw scans leave driver values behind
// pointers; those are dereferenced, and byte slices become strings.
func toRecord(m map[string]any) types.Record {
	rec := make(types.Record, len(m))
	for k, v := range m {
		v = deref(v)
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[k] = v
	}

	return rec
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		return deref(rv.Elem().Interface())
	}

	return rv.Interface()
}
