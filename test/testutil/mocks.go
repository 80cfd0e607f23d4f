package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/types"
)

// Call records one invocation of a MockAdapter method.
type Call struct {
	Method string
	Table  string
	ID     any
	Record types.Record
	Opts   types.ReadOptions
	Stmt   querybuilder.Statement
}

// MockAdapter is an in-memory adapter.Adapter that records every call.
//
// Rows are kept per table and keyed by fmt.Sprint(id). Errors, panics and
// blocking can be injected per method name ("Read", "InsertReturning",
// "UpdateReturning", "Upsert", "Delete", "Exec").
type MockAdapter struct {
	kind types.StoreKind

	mu      sync.Mutex
	tables  map[string]map[string]types.Record
	calls   []Call
	errs    map[string]error
	panics  map[string]any
	blocked chan struct{}
	nextID  int64
	idGen   func() any
	rawRows []types.Record
}

// Compile-time assertions that MockAdapter implements the adapter interfaces.
var (
	_ adapter.Adapter           = (*MockAdapter)(nil)
	_ adapter.StatementExecutor = (*MockAdapter)(nil)
	_ adapter.RawQuerier        = (*MockAdapter)(nil)
)

// NewMockAdapter creates an empty mock store of the given kind.
func NewMockAdapter(kind types.StoreKind) *MockAdapter {
	return &MockAdapter{
		kind:   kind,
		tables: make(map[string]map[string]types.Record),
		errs:   make(map[string]error),
		panics: make(map[string]any),
	}
}

// SetIDGenerator sets how InsertReturning assigns ids to records without one.
// The default assigns increasing int64 values starting at 1.
func (m *MockAdapter) SetIDGenerator(fn func() any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idGen = fn
}

// SetError makes method fail with err. A nil err clears the injection.
func (m *MockAdapter) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// SetPanic makes method panic with v.
func (m *MockAdapter) SetPanic(method string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[method] = v
}

// Block makes every call wait until the returned release function is called
// or the call's context is done.
func (m *MockAdapter) Block() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.blocked = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.blocked = nil
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Seed stores rows in table.
func (m *MockAdapter) Seed(table string, rows ...types.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		id, _ := r.ID()
		m.table(table)[fmt.Sprint(id)] = r.Clone()
	}
}

// Rows returns the rows of table ordered by id.
func (m *MockAdapter) Rows(table string) []types.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sortedRows(table)
}

// Calls returns every recorded call.
func (m *MockAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.calls)
}

// CallsTo returns the recorded calls of method.
func (m *MockAdapter) CallsTo(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Call
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}

	return out
}

// Kind returns the configured store kind.
func (m *MockAdapter) Kind() types.StoreKind {
	return m.kind
}

// Read returns rows matching eq and neq filters, honoring order and limit.
func (m *MockAdapter) Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error) {
	if err := m.enter(ctx, Call{Method: "Read", Table: table, Opts: opts}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Record
	for _, r := range m.sortedRows(table) {
		if matches(r, opts.Filters) {
			out = append(out, r)
		}
	}
	for i := len(opts.Order) - 1; i >= 0; i-- {
		o := opts.Order[i]
		slices.SortStableFunc(out, func(a, b types.Record) int {
			c := cmp.Compare(fmt.Sprint(a[o.Column]), fmt.Sprint(b[o.Column]))
			if o.Descending {
				return -c
			}
			return c
		})
	}
	if opts.Offset > 0 {
		out = out[min(opts.Offset, len(out)):]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	return out, nil
}

// InsertReturning stores rec, assigning an id when missing.
func (m *MockAdapter) InsertReturning(ctx context.Context, table string, rec types.Record) (types.Record, error) {
	if err := m.enter(ctx, Call{Method: "InsertReturning", Table: table, Record: rec.Clone()}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := rec.Clone()
	id, ok := row.ID()
	if !ok {
		id = m.newID()
		row["id"] = id
	}
	m.table(table)[fmt.Sprint(id)] = row

	return row.Clone(), nil
}

// UpdateReturning merges rec into the row with id.
func (m *MockAdapter) UpdateReturning(ctx context.Context, table string, id any, rec types.Record) (types.Record, error) {
	if err := m.enter(ctx, Call{Method: "UpdateReturning", Table: table, ID: id, Record: rec.Clone()}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.table(table)[fmt.Sprint(id)]
	if !ok {
		return nil, types.ErrNotFound
	}
	for k, v := range rec {
		if k == "id" {
			continue
		}
		row[k] = v
	}

	return row.Clone(), nil
}

// Upsert inserts rec or merges it into the existing row.
func (m *MockAdapter) Upsert(ctx context.Context, table string, rec types.Record) error {
	if err := m.enter(ctx, Call{Method: "Upsert", Table: table, Record: rec.Clone()}); err != nil {
		return err
	}

	id, ok := rec.ID()
	if !ok {
		return &types.QueryBuildError{Table: table, Reason: "upsert requires an id"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprint(id)
	row, exists := m.table(table)[key]
	if !exists {
		row = types.Record{}
		m.table(table)[key] = row
	}
	for k, v := range rec {
		row[k] = v
	}

	return nil
}

// Delete removes the row with id.
func (m *MockAdapter) Delete(ctx context.Context, table string, id any) error {
	if err := m.enter(ctx, Call{Method: "Delete", Table: table, ID: id}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table(table), fmt.Sprint(id))

	return nil
}

// Exec records stmt and reports one affected row.
func (m *MockAdapter) Exec(ctx context.Context, stmt querybuilder.Statement) (adapter.ExecResult, error) {
	if err := m.enter(ctx, Call{Method: "Exec", Stmt: stmt}); err != nil {
		return adapter.ExecResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++

	return adapter.ExecResult{RowsAffected: 1, LastInsertID: m.nextID}, nil
}

// SetRawRows sets the rows RawQuery returns.
func (m *MockAdapter) SetRawRows(rows ...types.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawRows = rows
}

// RawQuery records the statement and returns the rows set with SetRawRows.
func (m *MockAdapter) RawQuery(ctx context.Context, sql string, params ...any) ([]types.Record, error) {
	if err := m.enter(ctx, Call{Method: "RawQuery", Stmt: querybuilder.Statement{SQL: sql, Params: params}}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.rawRows), nil
}

// enter records the call, then applies injected panics, errors and blocking.
func (m *MockAdapter) enter(ctx context.Context, c Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	p, doPanic := m.panics[c.Method]
	err := m.errs[c.Method]
	blocked := m.blocked
	m.mu.Unlock()

	if blocked != nil {
		select {
		case <-blocked:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if doPanic {
		panic(p)
	}

	return err
}

func (m *MockAdapter) table(name string) map[string]types.Record {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]types.Record)
		m.tables[name] = t
	}

	return t
}

func (m *MockAdapter) sortedRows(table string) []types.Record {
	t := m.tables[table]
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]types.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, t[k].Clone())
	}

	return out
}

func (m *MockAdapter) newID() any {
	if m.idGen != nil {
		return m.idGen()
	}
	m.nextID++

	return m.nextID
}

func matches(r types.Record, filters []types.Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case types.OpEq:
			if fmt.Sprint(r[f.Column]) != fmt.Sprint(f.Value) {
				return false
			}
		case types.OpNeq:
			if fmt.Sprint(r[f.Column]) == fmt.Sprint(f.Value) {
				return false
			}
		case types.OpOr:
			hit := false
			for _, alt := range f.Any {
				if matches(r, []types.Filter{alt}) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		}
	}

	return true
}
