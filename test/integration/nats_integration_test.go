package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/switchyard"
	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/config"
	"github.com/arloliu/switchyard/notify"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/test/testutil"
	"github.com/arloliu/switchyard/types"
)

func TestNATSSettingsSwitchPrimaryAtRuntime(t *testing.T) {
	nc, js := testutil.StartEmbeddedNATSConn(t)
	kv := testutil.CreateKV(t, js, "switchyard-config")
	ctx := t.Context()

	srv, target := selfHostedDB(t, customersDDL)
	sub, err := srv.ServeNATS(nc, "", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	src, err := config.NewNATS(kv, config.WithPollInterval(50*time.Millisecond))
	require.NoError(t, err)
	testutil.PutSettings(t, kv, config.DefaultKey, settingsFor("self_hosted", target))
	src.Start(ctx)
	t.Cleanup(func() { _ = src.Close() })

	m := managedDB(t, customersDDL)
	router, err := switchyard.NewRouter(src, m,
		switchyard.WithProxy(proxy.NewNATSClient(nc, proxy.WithRequestTimeout(5*time.Second))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })

	require.Equal(t, types.KindSelfHosted, router.SelectPrimary(ctx))

	_, err = router.Create(ctx, "customers", types.Record{"id": "c-1", "name": "Acme"})
	require.NoError(t, err)
	router.Wait()

	rows, err := m.Read(ctx, "customers", types.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, []any{"Acme"}, names(rows))

	testutil.PutSettings(t, kv, config.DefaultKey, settingsFor("managed", target))
	require.Eventually(t, func() bool {
		return router.SelectPrimary(ctx) == types.KindManaged
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, router.Delete(ctx, "customers", "c-1"))
	router.Wait()

	rows, err = m.Read(ctx, "customers", types.ReadOptions{})
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, kind, err := router.RawQuery(ctx, "SELECT * FROM customers")
	require.NoError(t, err)
	require.Equal(t, types.KindManaged, kind)
	require.Empty(t, rows)

	// The delete reached the self-hosted store over the NATS transport.
	resp, err := srv.Execute(ctx, proxy.Request{Target: target, Query: "SELECT * FROM customers"})
	require.NoError(t, err)
	require.Empty(t, resp.Data)
}

func TestReplicationFailureIsPublishedToStream(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	ctx := t.Context()

	stream, err := notify.NewStream(js, notify.WithStreamName("SWITCHYARD_IT"))
	require.NoError(t, err)

	queue := notify.NewMemory()
	relay := notify.NewRelay(queue, stream.Publish)
	require.NoError(t, relay.Start())
	t.Cleanup(func() {
		relay.Stop()
		queue.Close()
	})

	src := config.NewMemory()
	src.Set(config.DefaultKey, mustJSON(t, config.Settings{
		PrimarySource:       "managed",
		UseManaged:          true,
		UseSecondaryManaged: true,
		SecondaryManagedURL: "https://secondary.example.com",
		SecondaryManagedKey: "service-key",
	}))

	m := managedDB(t, customersDDL)
	router, err := switchyard.NewRouter(src, m,
		switchyard.WithNotifier(queue),
		switchyard.WithSecondaryOpener(func(context.Context, string, string) (adapter.Adapter, error) {
			return nil, errors.New("secondary unreachable")
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })

	row, err := router.Create(ctx, "customers", types.Record{"id": "c-1", "name": "Acme"})
	require.NoError(t, err, "replication failures never reach the caller")
	require.Equal(t, "Acme", row["name"])
	router.Wait()

	var got []types.Notification
	require.Eventually(t, func() bool {
		batch, err := stream.Fetch(ctx, "it-ui", 10, 200*time.Millisecond)
		if err != nil {
			return false
		}
		got = append(got, batch...)

		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	require.Len(t, got, 1)
	require.Equal(t, types.LevelWarning, got[0].Level)
	require.Contains(t, got[0].Message, "replication to secondary_managed failed")
	require.Contains(t, got[0].Message, "secondary unreachable")
}
