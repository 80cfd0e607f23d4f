package vm

import (
	"bytes"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/switchyard/types"
)

func newCollector(t *testing.T) *Collector {
	t.Helper()

	return New(WithPrefix("test"), WithMetricsSet(metrics.NewSet()))
}

func TestCollectorCountsPerStore(t *testing.T) {
	c := newCollector(t)

	c.IncWriteTotal(types.KindManaged)
	c.IncWriteTotal(types.KindManaged)
	c.IncReplicationError(types.KindSelfHosted)
	c.IncReplicationDropped(types.KindSecondaryManaged)
	c.IncConfigFallback()
	c.SetReplicationInFlight(3)
	c.SetBreakerState(types.KindSelfHosted, 2)
	c.IncBreakerTrip(types.KindSelfHosted)
	c.ObserveReplicationDuration(types.KindSelfHosted, 0.25)

	// Unknown kinds are ignored.
	c.IncReadTotal(types.StoreKind("oracle"))

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	out := buf.String()

	require.Contains(t, out, `test_write_total{store="managed"} 2`)
	require.Contains(t, out, `test_replication_errors_total{store="self_hosted"} 1`)
	require.Contains(t, out, `test_replication_dropped_total{store="secondary_managed"} 1`)
	require.Contains(t, out, `test_config_fallback_total 1`)
	require.Contains(t, out, `test_replication_in_flight 3`)
	require.Contains(t, out, `test_breaker_state{store="self_hosted"} 2`)
	require.Contains(t, out, `test_breaker_trips_total{store="self_hosted"} 1`)
	require.NotContains(t, out, "oracle")
}
