package sql_test

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	sqladapter "github.com/arloliu/switchyard/adapter/sql"
	"github.com/arloliu/switchyard/types"
)

func openMemory(t *testing.T) sqladapter.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return sqladapter.WrapDB(db)
}

func TestWrapDB(t *testing.T) {
	db := openMemory(t)
	require.Implements(t, (*sqladapter.DB)(nil), db)
	require.NoError(t, db.PingContext(t.Context()))
}

func TestRunExecAndQuery(t *testing.T) {
	db := openMemory(t)
	ctx := t.Context()

	_, err := sqladapter.Run(ctx, db, "CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, is_active INTEGER)")
	require.NoError(t, err)

	out, err := sqladapter.Run(ctx, db, "INSERT INTO customers (name, is_active) VALUES (?, ?)", "Acme", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), out.RowsAffected)
	require.Equal(t, int64(1), out.LastInsertID)
	require.Nil(t, out.Rows)

	out, err = sqladapter.Run(ctx, db, "SELECT id, name, is_active FROM customers WHERE name = ?", "Acme")
	require.NoError(t, err)
	require.Equal(t, []types.Record{{"id": int64(1), "name": "Acme", "is_active": int64(1)}}, out.Rows)

	out, err = sqladapter.Run(ctx, db, "SELECT 1 as connected")
	require.NoError(t, err)
	require.Equal(t, []types.Record{{"connected": int64(1)}}, out.Rows)
}

func TestRunEmptyResultIsEmptySlice(t *testing.T) {
	db := openMemory(t)
	ctx := t.Context()

	_, err := sqladapter.Run(ctx, db, "CREATE TABLE tasks (id TEXT PRIMARY KEY)")
	require.NoError(t, err)

	out, err := sqladapter.Run(ctx, db, "SELECT * FROM tasks")
	require.NoError(t, err)
	require.NotNil(t, out.Rows)
	require.Empty(t, out.Rows)
}

func TestRunPropagatesDriverErrors(t *testing.T) {
	db := openMemory(t)

	_, err := sqladapter.Run(t.Context(), db, "SELECT * FROM missing")
	require.Error(t, err)

	_, err = sqladapter.Run(t.Context(), db, "INSERT INTO missing (a) VALUES (?)", 1)
	require.Error(t, err)
}

func TestReturnsRows(t *testing.T) {
	require.True(t, sqladapter.ReturnsRows("SELECT 1"))
	require.True(t, sqladapter.ReturnsRows("  select * from t"))
	require.True(t, sqladapter.ReturnsRows("(SELECT 1) UNION (SELECT 2)"))
	require.True(t, sqladapter.ReturnsRows("WITH x AS (SELECT 1) SELECT * FROM x"))
	require.True(t, sqladapter.ReturnsRows("SHOW TABLES"))
	require.False(t, sqladapter.ReturnsRows("INSERT INTO t (a) VALUES (?)"))
	require.False(t, sqladapter.ReturnsRows("UPDATE t SET a = ?"))
	require.False(t, sqladapter.ReturnsRows("DELETE FROM t WHERE id = ?"))
	require.False(t, sqladapter.ReturnsRows(""))
}

func TestPoolCachesPerDSN(t *testing.T) {
	var opened atomic.Int32
	pool := sqladapter.NewPool(func(_ context.Context, dsn string) (sqladapter.DB, error) {
		opened.Add(1)
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}

		return sqladapter.WrapDB(db), nil
	})
	defer pool.Close()

	a1, err := pool.Get(t.Context(), "file:a?mode=memory&cache=shared")
	require.NoError(t, err)
	a2, err := pool.Get(t.Context(), "file:a?mode=memory&cache=shared")
	require.NoError(t, err)
	require.Same(t, a1, a2)

	_, err = pool.Get(t.Context(), "file:b?mode=memory&cache=shared")
	require.NoError(t, err)
	require.Equal(t, int32(2), opened.Load())
	require.Equal(t, 2, pool.Len())

	pool.Evict("file:a?mode=memory&cache=shared")
	require.Equal(t, 1, pool.Len())

	_, err = pool.Get(t.Context(), "file:a?mode=memory&cache=shared")
	require.NoError(t, err)
	require.Equal(t, int32(3), opened.Load())

	require.NoError(t, pool.Close())
	require.Equal(t, 0, pool.Len())
}

func TestPoolOpenerError(t *testing.T) {
	boom := errors.New("dial failed")
	pool := sqladapter.NewPool(func(context.Context, string) (sqladapter.DB, error) {
		return nil, boom
	})

	_, err := pool.Get(t.Context(), "dsn")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, pool.Len())
}
