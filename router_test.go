package switchyard_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/switchyard"
	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/adapter/managed"
	"github.com/arloliu/switchyard/config"
	"github.com/arloliu/switchyard/notify"
	"github.com/arloliu/switchyard/policy"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/test/testutil"
	"github.com/arloliu/switchyard/types"
)

const (
	secondaryURL = "postgres://app@replica.internal:5432/crm"
	secondaryKey = "service-key"
)

type fixture struct {
	source    *config.Memory
	managed   *testutil.MockAdapter
	secondary *testutil.MockAdapter
	proxy     *testutil.RecordingExecutor
	metrics   *testutil.TestMetricsCollector
	notes     *notify.Memory
	opens     atomic.Int64
	openedURL atomic.Value

	mu       sync.Mutex
	outcomes []switchyard.ReplicationOutcome

	router *switchyard.Router
}

func newFixture(t *testing.T, opts ...switchyard.Option) *fixture {
	t.Helper()

	f := &fixture{
		source:    config.NewMemory(),
		managed:   testutil.NewMockAdapter(types.KindManaged),
		secondary: testutil.NewMockAdapter(types.KindSecondaryManaged),
		proxy:     testutil.NewRecordingExecutor(),
		metrics:   testutil.NewTestMetricsCollector(),
		notes:     notify.NewMemory(),
	}

	base := []switchyard.Option{
		switchyard.WithProxy(f.proxy),
		switchyard.WithMetrics(f.metrics),
		switchyard.WithNotifier(f.notes),
		switchyard.WithReplicationTimeout(5 * time.Second),
		switchyard.WithSecondaryOpener(func(_ context.Context, url, key string) (adapter.Adapter, error) {
			f.opens.Add(1)
			f.openedURL.Store(url)
			return f.secondary, nil
		}),
		switchyard.WithOnReplicationOutcome(func(o switchyard.ReplicationOutcome) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.outcomes = append(f.outcomes, o)
		}),
	}

	router, err := switchyard.NewRouter(f.source, f.managed, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })
	f.router = router

	return f
}

func (f *fixture) configure(t *testing.T, s config.Settings) {
	t.Helper()

	data, err := json.Marshal(s)
	require.NoError(t, err)
	f.source.Set(config.DefaultKey, data)
}

func (f *fixture) replicationOutcomes() []switchyard.ReplicationOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]switchyard.ReplicationOutcome, len(f.outcomes))
	copy(out, f.outcomes)

	return out
}

func allEnabled(primary string) config.Settings {
	return config.Settings{
		PrimarySource:       primary,
		UseManaged:          true,
		UseSelfHosted:       true,
		UseSecondaryManaged: true,
		SelfHostedHost:      "https://mysql.internal/",
		SelfHostedUser:      "app",
		SelfHostedPassword:  "secret",
		SelfHostedDatabase:  "crm",
		SecondaryManagedURL: secondaryURL,
		SecondaryManagedKey: secondaryKey,
	}
}

func TestNewRouterRejectsNilManaged(t *testing.T) {
	_, err := switchyard.NewRouter(config.NewMemory(), nil)
	require.ErrorIs(t, err, types.ErrNilAdapter)
}

type failingSource struct{}

func (failingSource) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("settings table unreachable")
}

func TestConfigurationFallsBackToManaged(t *testing.T) {
	ctx := t.Context()

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)
		require.Equal(t, types.KindManaged, f.router.SelectPrimary(ctx))
		require.Equal(t, int64(1), f.metrics.GetConfigFallbacks())
	})

	t.Run("malformed", func(t *testing.T) {
		f := newFixture(t)
		f.source.Set(config.DefaultKey, []byte("{primarySource: mysql"))

		res, err := f.router.Execute(ctx, types.ReadOp("customers", types.ReadOptions{}))
		require.NoError(t, err)
		require.Equal(t, types.KindManaged, res.Store)
		require.Len(t, f.managed.CallsTo("Read"), 1)
		require.Equal(t, int64(1), f.metrics.GetConfigFallbacks())
	})

	t.Run("source error", func(t *testing.T) {
		m := testutil.NewTestMetricsCollector()
		mock := testutil.NewMockAdapter(types.KindManaged)
		router, err := switchyard.NewRouter(failingSource{}, mock, switchyard.WithMetrics(m))
		require.NoError(t, err)

		_, err = router.Create(ctx, "customers", types.Record{"name": "Acme"})
		require.NoError(t, err)
		router.Wait()

		require.Len(t, mock.CallsTo("InsertReturning"), 1)
		require.Equal(t, int64(1), m.GetConfigFallbacks())
		require.Zero(t, m.GetReplicationTotal(types.KindSelfHosted))
	})

	t.Run("unconfigured primary", func(t *testing.T) {
		f := newFixture(t)
		f.configure(t, config.Settings{PrimarySource: "self_hosted", UseSelfHosted: true})

		require.Equal(t, types.KindManaged, f.router.SelectPrimary(ctx))
		require.Zero(t, f.metrics.GetConfigFallbacks())
	})
}

func TestPrimarySwitchToSelfHosted(t *testing.T) {
	f := newFixture(t)
	s := allEnabled("self_hosted")
	s.UseSecondaryManaged = false
	f.configure(t, s)

	row, err := f.router.Create(t.Context(), "customers", types.Record{"name": "Acme"})
	require.NoError(t, err)
	require.Equal(t, types.Record{"name": "Acme", "id": int64(1)}, row)

	f.router.Wait()

	reqs := f.proxy.Requests()
	require.Len(t, reqs, 2, "insert plus read-back, no replication to the primary itself")
	require.Equal(t, "INSERT INTO customers (name) VALUES (?)", reqs[0].Query)
	require.Equal(t, []any{"Acme"}, reqs[0].Params)
	require.Equal(t, "mysql.internal", reqs[0].Host)
	require.Equal(t, proxy.DefaultPort, reqs[0].Port)

	upserts := f.managed.CallsTo("Upsert")
	require.Len(t, upserts, 1)
	require.Equal(t, "customers", upserts[0].Table)
	require.Equal(t, types.Record{"name": "Acme", "id": int64(1)}, upserts[0].Record)

	require.Empty(t, f.managed.CallsTo("InsertReturning"), "managed is a replica, not the primary")
	require.Zero(t, f.opens.Load(), "secondary is disabled")
}

func TestDeleteFanOutSurvivesReplicaFailures(t *testing.T) {
	tests := []struct {
		name    string
		respond func(proxy.Request) (*proxy.Response, error)
	}{
		{"panic", func(proxy.Request) (*proxy.Response, error) { panic("proxy crashed") }},
		{"error", func(proxy.Request) (*proxy.Response, error) {
			return nil, &proxy.RemoteError{Message: "Table 'crm.customers' doesn't exist"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.configure(t, allEnabled("managed"))
			f.managed.Seed("customers", types.Record{"id": int64(7), "name": "Acme"})
			f.secondary.Seed("customers", types.Record{"id": int64(7), "name": "Acme"})
			f.proxy.Respond(tt.respond)

			err := f.router.Delete(t.Context(), "customers", int64(7))
			require.NoError(t, err)

			f.router.Wait()

			require.Len(t, f.managed.CallsTo("Delete"), 1)
			require.Len(t, f.secondary.CallsTo("Delete"), 1)
			require.Empty(t, f.secondary.Rows("customers"))

			reqs := f.proxy.Requests()
			require.Len(t, reqs, 1, "at most one attempt per target")
			require.Equal(t, "DELETE FROM customers WHERE id = ?", reqs[0].Query)
			require.Equal(t, []any{int64(7)}, reqs[0].Params)

			require.Equal(t, int64(1), f.metrics.GetReplicationErrors(types.KindSelfHosted))
			require.Zero(t, f.metrics.GetReplicationErrors(types.KindSecondaryManaged))

			notes := f.notes.DrainAll()
			require.Len(t, notes, 1)
			assert.Equal(t, types.LevelWarning, notes[0].Level)
			assert.Contains(t, notes[0].Message, "Primary write succeeded; replication to self_hosted failed")

			var failed []switchyard.ReplicationOutcome
			for _, o := range f.replicationOutcomes() {
				if o.Err != nil {
					failed = append(failed, o)
				}
			}
			require.Len(t, failed, 1)
			require.Equal(t, types.KindSelfHosted, failed[0].Target)
			require.ErrorIs(t, failed[0].Err, types.ErrReplicationFailed)

			var re *types.ReplicationError
			require.ErrorAs(t, failed[0].Err, &re)
			require.Equal(t, types.KindManaged, re.Primary)
			require.Equal(t, types.ActionDelete, re.Action)
		})
	}
}

func TestReplicationNeverBlocksPrimary(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("managed"))

	releaseSecondary := f.secondary.Block()
	releaseProxy := f.proxy.Block()
	defer releaseSecondary()
	defer releaseProxy()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := f.router.Create(ctx, "customers", types.Record{"id": "c-1", "name": "Acme"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("primary write waited for hanging replicas")
	}

	// Caller cancellation must not abort replication.
	cancel()
	releaseSecondary()
	releaseProxy()
	f.router.Wait()

	require.Len(t, f.secondary.Rows("customers"), 1)
	require.Len(t, f.proxy.Requests(), 1)
	require.Zero(t, f.metrics.GetReplicationErrors(types.KindSecondaryManaged))
	require.Zero(t, f.metrics.GetReplicationErrors(types.KindSelfHosted))
}

func TestReplicationTimeoutBoundsAttempts(t *testing.T) {
	f := newFixture(t, switchyard.WithReplicationTimeout(20*time.Millisecond))
	s := allEnabled("managed")
	s.UseSelfHosted = false
	f.configure(t, s)

	release := f.secondary.Block()
	defer release()

	_, err := f.router.Create(t.Context(), "customers", types.Record{"id": "c-1", "name": "Acme"})
	require.NoError(t, err)
	f.router.Wait()

	require.Equal(t, int64(1), f.metrics.GetReplicationErrors(types.KindSecondaryManaged))
	outcomes := f.replicationOutcomes()
	require.Len(t, outcomes, 1)
	require.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
}

func TestWriteThenReadOwnWrite(t *testing.T) {
	db, err := managed.New(testutil.OpenSQLite(t,
		`CREATE TABLE customers (id TEXT PRIMARY KEY, name TEXT NOT NULL, email TEXT, is_active INTEGER DEFAULT 1, created_at TEXT)`,
	), managed.WithIDGenerator(func() any { return "c-42" }))
	require.NoError(t, err)

	router, err := switchyard.NewRouter(config.NewMemory(), db)
	require.NoError(t, err)
	defer router.Close()

	ctx := t.Context()
	created, err := router.Create(ctx, "customers", types.Record{"name": "Acme", "email": "ops@acme.test"})
	require.NoError(t, err)
	require.Equal(t, "c-42", created["id"])

	rows, err := router.Read(ctx, "customers", types.ReadOptions{
		Filters: []types.Filter{types.Eq("id", "c-42")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Acme", rows[0]["name"])
	require.Equal(t, "ops@acme.test", rows[0]["email"])

	updated, err := router.Update(ctx, "customers", "c-42", types.Record{"name": "Acme Gas"})
	require.NoError(t, err)
	require.Equal(t, "Acme Gas", updated["name"])

	require.NoError(t, router.Delete(ctx, "customers", "c-42"))
	rows, err = router.Read(ctx, "customers", types.ReadOptions{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestReadsUsePrimaryOnly(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("secondary_managed"))
	f.secondary.Seed("customers", types.Record{"id": "c-1", "name": "Acme"})

	rows, err := f.router.Read(t.Context(), "customers", types.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.Empty(t, f.managed.CallsTo("Read"))
	require.Empty(t, f.proxy.Requests())
}

func TestUpdateReplicatesStatementsAndUpserts(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("managed"))
	f.managed.Seed("customers", types.Record{"id": int64(3), "name": "Old", "email": "old@acme.test"})

	_, err := f.router.Update(t.Context(), "customers", int64(3), types.Record{"name": "New"})
	require.NoError(t, err)
	f.router.Wait()

	reqs := f.proxy.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "UPDATE customers SET name = ? WHERE id = ?", reqs[0].Query)
	require.Equal(t, []any{"New", int64(3)}, reqs[0].Params)

	upserts := f.secondary.CallsTo("Upsert")
	require.Len(t, upserts, 1)
	require.Equal(t, types.Record{"id": int64(3), "name": "New", "email": "old@acme.test"}, upserts[0].Record)
}

func TestRelationKeysAreStripped(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("managed"))

	rec := types.Record{
		"id":          "o-1",
		"customer_id": "c-1",
		"customers":   map[string]any{"name": "Acme"},
	}
	_, err := f.router.Create(t.Context(), "gas_cylinder_orders", rec, "customers")
	require.NoError(t, err)
	f.router.Wait()

	require.Contains(t, rec, "customers", "caller's record is not modified")

	inserts := f.managed.CallsTo("InsertReturning")
	require.Len(t, inserts, 1)
	require.NotContains(t, inserts[0].Record, "customers")

	upserts := f.secondary.CallsTo("Upsert")
	require.Len(t, upserts, 1)
	require.NotContains(t, upserts[0].Record, "customers")

	reqs := f.proxy.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "INSERT INTO gas_cylinder_orders (customer_id, id) VALUES (?, ?)", reqs[0].Query)
}

func TestPrimaryFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("managed"))
	f.managed.SetError("InsertReturning", errors.New("connection refused"))

	_, err := f.router.Create(t.Context(), "customers", types.Record{"name": "Acme"})
	require.ErrorIs(t, err, types.ErrPrimaryUnavailable)

	var pe *types.PrimaryUnavailableError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, types.KindManaged, pe.Store)
	require.Equal(t, "create customers", pe.Operation)

	f.router.Wait()
	require.Empty(t, f.proxy.Requests(), "failed writes are not replicated")
	require.Zero(t, f.opens.Load())
	require.Equal(t, int64(1), f.metrics.GetWriteErrors(types.KindManaged))
}

func TestSelfHostedPrimaryWithoutProxy(t *testing.T) {
	source := config.NewMemory()
	data, err := json.Marshal(allEnabled("self_hosted"))
	require.NoError(t, err)
	source.Set(config.DefaultKey, data)

	router, err := switchyard.NewRouter(source, testutil.NewMockAdapter(types.KindManaged))
	require.NoError(t, err)

	_, err = router.Read(t.Context(), "customers", types.ReadOptions{})
	require.ErrorIs(t, err, types.ErrPrimaryUnavailable)
	require.ErrorIs(t, err, types.ErrStoreNotConfigured)
}

func TestQueryBuildErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("self_hosted"))

	_, err := f.router.Create(t.Context(), "customers", types.Record{"name": types.Undefined})
	require.ErrorIs(t, err, types.ErrQueryBuild)
	require.NotErrorIs(t, err, types.ErrPrimaryUnavailable)
	require.Empty(t, f.proxy.Requests())
}

func TestSecondaryCacheRebuildsOnURLChange(t *testing.T) {
	f := newFixture(t)
	s := allEnabled("secondary_managed")
	f.configure(t, s)
	ctx := t.Context()

	for range 3 {
		_, err := f.router.Read(ctx, "customers", types.ReadOptions{})
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), f.opens.Load())

	s.SecondaryManagedURL = "postgres://app@replica-2.internal:5432/crm"
	f.configure(t, s)

	_, err := f.router.Read(ctx, "customers", types.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(2), f.opens.Load())
	require.Equal(t, s.SecondaryManagedURL, f.openedURL.Load())
	require.Equal(t, int64(2), f.metrics.GetSecondaryRebuilds())

	// Key rotation alone keeps the cached handle.
	s.SecondaryManagedKey = "rotated"
	f.configure(t, s)
	_, err = f.router.Read(ctx, "customers", types.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(2), f.opens.Load())
}

func TestSecondaryOpenFailureIsPrimaryUnavailable(t *testing.T) {
	f := newFixture(t, switchyard.WithSecondaryOpener(func(context.Context, string, string) (adapter.Adapter, error) {
		return nil, errors.New("dial tcp: no route to host")
	}))
	f.configure(t, allEnabled("secondary_managed"))

	_, err := f.router.Read(t.Context(), "customers", types.ReadOptions{})
	require.ErrorIs(t, err, types.ErrPrimaryUnavailable)
}

func TestMaxInFlightDropsExcessAttempts(t *testing.T) {
	f := newFixture(t, switchyard.WithMaxInFlight(1))
	f.configure(t, allEnabled("managed"))

	release := f.proxy.Block()
	_, err := f.router.Create(t.Context(), "customers", types.Record{"id": "c-1", "name": "Acme"})
	require.NoError(t, err)
	release()
	f.router.Wait()

	require.Equal(t, int64(1), f.metrics.GetReplicationDropped(types.KindSecondaryManaged))
	require.Empty(t, f.secondary.Calls(), "dropped attempts never reach the target")
	require.Len(t, f.proxy.Requests(), 1)

	var dropped []switchyard.ReplicationOutcome
	for _, o := range f.replicationOutcomes() {
		if errors.Is(o.Err, types.ErrReplicationDropped) {
			dropped = append(dropped, o)
		}
	}
	require.Len(t, dropped, 1)
	require.Equal(t, types.KindSecondaryManaged, dropped[0].Target)
}

func TestBreakerSkipsFailingTarget(t *testing.T) {
	breaker := policy.NewTargetBreaker(policy.WithThreshold(1), policy.WithCooldown(time.Hour))
	f := newFixture(t, switchyard.WithBreaker(breaker))
	s := allEnabled("managed")
	s.UseSecondaryManaged = false
	f.configure(t, s)
	f.proxy.Respond(func(proxy.Request) (*proxy.Response, error) {
		return nil, errors.New("proxy unreachable")
	})

	ctx := t.Context()
	require.NoError(t, f.router.Delete(ctx, "customers", int64(1)))
	f.router.Wait()
	require.NoError(t, f.router.Delete(ctx, "customers", int64(2)))
	f.router.Wait()

	require.Len(t, f.proxy.Requests(), 1)
	require.Equal(t, int64(1), f.metrics.GetReplicationDropped(types.KindSelfHosted))
	require.Equal(t, policy.StateOpen, breaker.State(types.KindSelfHosted))
}

func TestBreakerProbeSurvivesFullLimiter(t *testing.T) {
	breaker := policy.NewTargetBreaker(policy.WithThreshold(1), policy.WithCooldown(300*time.Millisecond))
	f := newFixture(t, switchyard.WithBreaker(breaker), switchyard.WithMaxInFlight(1))
	f.configure(t, allEnabled("managed"))
	f.proxy.Respond(func(proxy.Request) (*proxy.Response, error) {
		return nil, errors.New("proxy unreachable")
	})
	ctx := t.Context()

	require.NoError(t, f.router.Delete(ctx, "customers", int64(1)))
	f.router.Wait()
	require.Len(t, f.proxy.Requests(), 1)
	require.Equal(t, policy.StateOpen, breaker.State(types.KindSelfHosted))

	// The open breaker gives the slot back, so the secondary takes it and holds it.
	release := f.secondary.Block()
	require.NoError(t, f.router.Delete(ctx, "customers", int64(2)))

	time.Sleep(350 * time.Millisecond)
	f.proxy.Respond(func(proxy.Request) (*proxy.Response, error) {
		return &proxy.Response{AffectedRows: 1}, nil
	})

	// Cooldown is over but no slot is free: the attempt is dropped without
	// using up the half-open probe.
	require.NoError(t, f.router.Delete(ctx, "customers", int64(3)))
	require.Len(t, f.proxy.Requests(), 1)

	release()
	f.router.Wait()

	require.NoError(t, f.router.Delete(ctx, "customers", int64(4)))
	f.router.Wait()

	require.Len(t, f.proxy.Requests(), 2)
	require.Equal(t, policy.StateClosed, breaker.State(types.KindSelfHosted))
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	s := allEnabled("self_hosted")
	s.UseSecondaryManaged = false
	f.configure(t, s)
	f.proxy.Respond(func(req proxy.Request) (*proxy.Response, error) {
		return &proxy.Response{Data: []types.Record{{"connected": int64(1)}}}, nil
	})

	results := f.router.Ping(t.Context())
	require.Len(t, results, 2)

	require.Equal(t, types.KindManaged, results[0].Kind)
	require.False(t, results[0].Primary)
	require.ErrorIs(t, results[0].Err, types.ErrUnsupported, "mock store has no connection test")

	require.Equal(t, types.KindSelfHosted, results[1].Kind)
	require.True(t, results[1].Primary)
	require.NoError(t, results[1].Err)
	require.Equal(t, "SELECT 1 as connected", f.proxy.Requests()[0].Query)
}

func TestRawQuery(t *testing.T) {
	f := newFixture(t)
	f.managed.SetRawRows(types.Record{"id": "t-1"})

	rows, store, err := f.router.RawQuery(t.Context(), "SELECT * FROM tasks WHERE due_date >= ?", "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, types.KindManaged, store)
	require.Equal(t, []types.Record{{"id": "t-1"}}, rows)
}

func TestClose(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.router.Close())
	require.NoError(t, f.router.Close())
	require.True(t, f.router.IsClosed())

	_, err := f.router.Execute(t.Context(), types.ReadOp("customers", types.ReadOptions{}))
	require.ErrorIs(t, err, types.ErrRouterClosed)
}

func TestCloseWaitsForRunningOperations(t *testing.T) {
	f := newFixture(t)
	f.configure(t, allEnabled("managed"))

	release := f.managed.Block()
	deleted := make(chan error, 1)
	go func() {
		deleted <- f.router.Delete(context.Background(), "customers", "c-1")
	}()
	require.Eventually(t, func() bool {
		return len(f.managed.CallsTo("Delete")) == 1
	}, time.Second, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- f.router.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while a primary write was running")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, <-deleted)
	require.NoError(t, <-closed)

	// Everything the running delete started finished before Close returned.
	require.Len(t, f.replicationOutcomes(), 2)
	opens := f.opens.Load()

	err := f.router.Delete(t.Context(), "customers", "c-2")
	require.ErrorIs(t, err, types.ErrRouterClosed)
	require.Equal(t, opens, f.opens.Load())
}
