package selfhosted_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/switchyard/adapter/selfhosted"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/test/testutil"
	"github.com/arloliu/switchyard/types"
)

var target = proxy.Target{
	Host:     "http://mysql.example.com:3306/",
	User:     "app",
	Password: "secret",
	Database: "crm",
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := selfhosted.New(nil, target)
	require.ErrorIs(t, err, types.ErrNilAdapter)

	_, err = selfhosted.New(testutil.NewRecordingExecutor(), proxy.Target{Host: "h"})
	require.ErrorIs(t, err, types.ErrStoreNotConfigured)

	a, err := selfhosted.New(testutil.NewRecordingExecutor(), target)
	require.NoError(t, err)
	require.Equal(t, types.KindSelfHosted, a.Kind())
	require.Equal(t, "mysql.example.com", a.Target().Host)
	require.Equal(t, proxy.DefaultPort, a.Target().Port)
}

func TestInsertReturningUsesBuilderAndLastInsertID(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	exec.Respond(func(req proxy.Request) (*proxy.Response, error) {
		if req.Query == "INSERT INTO customers (name) VALUES (?)" {
			return &proxy.Response{AffectedRows: 1, LastInsertID: 42}, nil
		}

		return &proxy.Response{Data: []types.Record{{"id": int64(42), "name": "Acme", "is_active": int64(1)}}}, nil
	})
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	row, err := a.InsertReturning(t.Context(), "customers", types.Record{"name": "Acme", "notes": types.Undefined})
	require.NoError(t, err)
	require.Equal(t, types.Record{"id": int64(42), "name": "Acme", "is_active": int64(1)}, row)

	reqs := exec.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, "INSERT INTO customers (name) VALUES (?)", reqs[0].Query)
	require.Equal(t, []any{"Acme"}, reqs[0].Params)
	require.Equal(t, "mysql.example.com", reqs[0].Host)
	require.Equal(t, "SELECT * FROM customers WHERE id = ? LIMIT 1", reqs[1].Query)
	require.Equal(t, []any{int64(42)}, reqs[1].Params)
}

func TestInsertReturningFallsBackToWrittenValues(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	exec.Respond(func(req proxy.Request) (*proxy.Response, error) {
		if req.Query[:6] == "SELECT" {
			return nil, errors.New("read replica lag")
		}

		return &proxy.Response{AffectedRows: 1}, nil
	})
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	row, err := a.InsertReturning(t.Context(), "tasks", types.Record{"id": "t1", "title": "Vullen"})
	require.NoError(t, err)
	require.Equal(t, types.Record{"id": "t1", "title": "Vullen"}, row)
}

func TestUpdateReturningNotFound(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	exec.Respond(func(req proxy.Request) (*proxy.Response, error) {
		return &proxy.Response{}, nil
	})
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	_, err = a.UpdateReturning(t.Context(), "tasks", "missing", types.Record{"status": "done"})
	require.ErrorIs(t, err, types.ErrNotFound)

	reqs := exec.Requests()
	require.Equal(t, "UPDATE tasks SET status = ? WHERE id = ?", reqs[0].Query)
	require.Equal(t, []any{"done", "missing"}, reqs[0].Params)
}

func TestUpsertAndDelete(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	require.NoError(t, a.Upsert(t.Context(), "customers", types.Record{"id": "c1", "name": "Acme"}))
	require.NoError(t, a.Delete(t.Context(), "customers", "c1"))

	reqs := exec.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, "INSERT INTO customers (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)", reqs[0].Query)
	require.Equal(t, "DELETE FROM customers WHERE id = ?", reqs[1].Query)
	require.Equal(t, []any{"c1"}, reqs[1].Params)
}

func TestBuilderErrorsAreNotSent(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	err = a.Delete(t.Context(), "customers", nil)
	require.ErrorIs(t, err, types.ErrQueryBuild)
	require.Empty(t, exec.Requests())
}

func TestProxyErrorsAreStoreErrors(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	exec.Respond(func(proxy.Request) (*proxy.Response, error) {
		return nil, &proxy.RemoteError{Status: 400, Message: "Table 'crm.customers' doesn't exist"}
	})
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	_, err = a.Read(t.Context(), "customers", types.ReadOptions{})
	var storeErr *types.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, types.KindSelfHosted, storeErr.Store)
	var remote *proxy.RemoteError
	require.ErrorAs(t, err, &remote)
}

func TestReadReturnsEmptySlice(t *testing.T) {
	a, err := selfhosted.New(testutil.NewRecordingExecutor(), target)
	require.NoError(t, err)

	rows, err := a.Read(t.Context(), "customers", types.ReadOptions{
		Filters: []types.Filter{types.Eq("is_active", true)},
		Joins:   []types.Join{{Table: "task_types", LocalKey: "type_id"}},
	})
	require.NoError(t, err)
	require.NotNil(t, rows)
	require.Empty(t, rows)
}

func TestExecRawQueryAndPing(t *testing.T) {
	exec := testutil.NewRecordingExecutor()
	a, err := selfhosted.New(exec, target)
	require.NoError(t, err)

	res, err := a.Exec(t.Context(), querybuilder.Statement{SQL: "DELETE FROM tasks WHERE status = ?", Params: []any{"cancelled"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)

	_, err = a.RawQuery(t.Context(), "SELECT * FROM tasks WHERE done = ?", true)
	require.NoError(t, err)
	require.Equal(t, []any{1}, exec.Requests()[1].Params)

	require.Error(t, a.Ping(t.Context()), "ping without rows must fail")

	exec.Respond(func(req proxy.Request) (*proxy.Response, error) {
		require.Equal(t, "SELECT 1 as connected", req.Query)
		return &proxy.Response{Data: []types.Record{{"connected": int64(1)}}}, nil
	})
	require.NoError(t, a.Ping(t.Context()))
}
