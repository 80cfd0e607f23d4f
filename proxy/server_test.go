package proxy_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	sqladapter "github.com/arloliu/switchyard/adapter/sql"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/test/testutil"
	"github.com/arloliu/switchyard/types"
)

var testSecret = []byte("proxy-test-secret")

var dbSeq atomic.Int64

// newSQLiteServer returns a proxy server whose targets resolve to a private
// in-memory SQLite database, plus a target pointing at it.
func newSQLiteServer(t *testing.T, opts ...proxy.ServerOption) (*proxy.Server, proxy.Target) {
	t.Helper()

	pool := sqladapter.NewPool(func(ctx context.Context, dsn string) (sqladapter.DB, error) {
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}

		return sqladapter.WrapDB(db), nil
	})
	t.Cleanup(func() { _ = pool.Close() })

	opts = append([]proxy.ServerOption{
		proxy.WithSecret(testSecret),
		proxy.WithDSNFunc(func(t proxy.Target) string {
			return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Database)
		}),
	}, opts...)
	srv := proxy.NewServer(pool, opts...)

	target := proxy.Target{
		Host:     "https://db.internal:3307/",
		User:     "app",
		Password: "secret",
		Database: fmt.Sprintf("proxy_%d", dbSeq.Add(1)),
	}

	_, err := srv.Execute(t.Context(), proxy.Request{
		Target: target,
		Query:  "CREATE TABLE customers (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, is_active INTEGER)",
	})
	require.NoError(t, err)

	return srv, target
}

func TestServerExecuteInProcess(t *testing.T) {
	srv, target := newSQLiteServer(t)
	ctx := t.Context()

	resp, err := srv.Execute(ctx, proxy.Request{
		Target: target,
		Query:  "INSERT INTO customers (name, is_active) VALUES (?, ?)",
		Params: []any{"Acme", 1},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.AffectedRows)
	require.Equal(t, int64(1), resp.LastInsertID)
	require.NotEmpty(t, resp.RequestID)

	resp, err = srv.Execute(ctx, proxy.Request{
		Target: target,
		Query:  "SELECT id, name FROM customers WHERE is_active = ?",
		Params: []any{1},
	})
	require.NoError(t, err)
	require.Equal(t, []types.Record{{"id": int64(1), "name": "Acme"}}, resp.Data)
}

func TestServerExecuteErrors(t *testing.T) {
	srv, target := newSQLiteServer(t)

	_, err := srv.Execute(t.Context(), proxy.Request{Target: target})
	var remote *proxy.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Contains(t, remote.Message, "missing connection details")

	_, err = srv.Execute(t.Context(), proxy.Request{Target: target, Query: "SELECT * FROM missing"})
	require.ErrorAs(t, err, &remote)
	require.Contains(t, remote.Message, "no such table")
}

func TestHTTPHandler(t *testing.T) {
	srv, target := newSQLiteServer(t, proxy.WithAPIKey("static-key"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	post := func(t *testing.T, token string, body any) (int, map[string]any) {
		t.Helper()

		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.URL+"/v1/execute", bytes.NewReader(raw))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

		return resp.StatusCode, out
	}

	token, err := proxy.IssueToken(testSecret, "tests", time.Minute)
	require.NoError(t, err)

	t.Run("health without auth", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		status, body := post(t, "", proxy.Request{Target: target, Query: "SELECT 1"})
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "Missing or invalid Authorization header", body["error"])
	})

	t.Run("wrong signature", func(t *testing.T) {
		forged, err := proxy.IssueToken([]byte("other"), "tests", time.Minute)
		require.NoError(t, err)
		status, _ := post(t, forged, proxy.Request{Target: target, Query: "SELECT 1"})
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("missing parameters", func(t *testing.T) {
		status, body := post(t, token, map[string]any{"host": "db", "query": "SELECT 1"})
		require.Equal(t, http.StatusBadRequest, status)
		require.Contains(t, body["error"], "missing connection details")
	})

	t.Run("insert with jwt", func(t *testing.T) {
		status, body := post(t, token, proxy.Request{
			Target: target,
			Query:  "INSERT INTO customers (name, is_active) VALUES (?, ?)",
			Params: []any{"Acme", 1},
		})
		require.Equal(t, http.StatusOK, status)
		require.EqualValues(t, 1, body["affectedRows"])
	})

	t.Run("select with api key", func(t *testing.T) {
		status, body := post(t, "static-key", proxy.Request{
			Target: target,
			Query:  "SELECT name FROM customers",
		})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, []any{map[string]any{"name": "Acme"}}, body["data"])
	})

	t.Run("statement error", func(t *testing.T) {
		status, body := post(t, token, proxy.Request{Target: target, Query: "SELECT * FROM missing"})
		require.Equal(t, http.StatusBadRequest, status)
		require.Contains(t, body["error"], "no such table")
	})
}

func TestHTTPClient(t *testing.T) {
	srv, target := newSQLiteServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := proxy.NewHTTPClient(ts.URL+"/v1/execute",
		proxy.WithHTTPClient(ts.Client()),
		proxy.WithTokenSource(proxy.SigningTokenSource(testSecret, "tests", time.Minute)),
	)

	resp, err := client.Execute(t.Context(), proxy.Request{
		Target: target,
		Query:  "INSERT INTO customers (name, is_active) VALUES (?, ?)",
		Params: []any{"Acme", true},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.LastInsertID)

	resp, err = client.Execute(t.Context(), proxy.Request{Target: target, Query: "SELECT id, name FROM customers"})
	require.NoError(t, err)
	require.Equal(t, []types.Record{{"id": int64(1), "name": "Acme"}}, resp.Data)

	_, err = client.Execute(t.Context(), proxy.Request{Target: target, Query: "SELECT * FROM missing"})
	var remote *proxy.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusBadRequest, remote.Status)

	unauthorized := proxy.NewHTTPClient(ts.URL+"/v1/execute",
		proxy.WithHTTPClient(ts.Client()),
		proxy.WithTokenSource(proxy.StaticToken("nope")),
	)
	_, err = unauthorized.Execute(t.Context(), proxy.Request{Target: target, Query: "SELECT 1"})
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusUnauthorized, remote.Status)
}

func TestNATSRoundTrip(t *testing.T) {
	srv, target := newSQLiteServer(t)
	nc, _ := testutil.StartEmbeddedNATSConn(t)

	sub, err := srv.ServeNATS(nc, "", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	client := proxy.NewNATSClient(nc, proxy.WithRequestTimeout(5*time.Second))

	resp, err := client.Execute(t.Context(), proxy.Request{
		Target: target,
		Query:  "INSERT INTO customers (name, is_active) VALUES (?, ?)",
		Params: []any{"Bakkerij", 0},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.AffectedRows)

	resp, err = client.Execute(t.Context(), proxy.Request{
		Target: target,
		Query:  "SELECT name, is_active FROM customers WHERE name = ?",
		Params: []any{"Bakkerij"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Bakkerij", resp.Data[0]["name"])
	require.EqualValues(t, 0, resp.Data[0]["is_active"])

	_, err = client.Execute(t.Context(), proxy.Request{Target: target, Query: "DELETE FROM missing"})
	var remote *proxy.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Zero(t, remote.Status)
}
