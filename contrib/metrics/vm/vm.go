package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/arloliu/switchyard/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "switchyard"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// storeMetrics holds the pre-created metrics of one store kind.
type storeMetrics struct {
	readTotal     *metrics.Counter
	readErrors    *metrics.Counter
	readDuration  *metrics.Histogram
	writeTotal    *metrics.Counter
	writeErrors   *metrics.Counter
	writeDuration *metrics.Histogram

	replicationTotal    *metrics.Counter
	replicationErrors   *metrics.Counter
	replicationDropped  *metrics.Counter
	replicationDuration *metrics.Histogram

	breakerState atomic.Int64
	breakerTrips *metrics.Counter
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// All metrics are pre-created at initialization time for every known store
// kind. Calls for unknown kinds are ignored. Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	stores map[types.StoreKind]*storeMetrics

	configFallbacks  *metrics.Counter
	secondaryRebuild *metrics.Counter
	inFlight         atomic.Int64
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
// All metrics are pre-created at initialization for optimal performance.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	router, _ := switchyard.NewRouter(source, managed,
//	    switchyard.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "switchyard",
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates all metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix

	c.stores = make(map[types.StoreKind]*storeMetrics)
	for _, kind := range types.AllKinds() {
		s := &storeMetrics{}
		label := func(name string) string {
			return fmt.Sprintf(`%s_%s{store="%s"}`, p, name, kind)
		}

		s.readTotal = c.set.NewCounter(label("read_total"))
		s.readErrors = c.set.NewCounter(label("read_errors_total"))
		s.readDuration = c.set.NewHistogram(label("read_duration_seconds"))
		s.writeTotal = c.set.NewCounter(label("write_total"))
		s.writeErrors = c.set.NewCounter(label("write_errors_total"))
		s.writeDuration = c.set.NewHistogram(label("write_duration_seconds"))

		s.replicationTotal = c.set.NewCounter(label("replication_total"))
		s.replicationErrors = c.set.NewCounter(label("replication_errors_total"))
		s.replicationDropped = c.set.NewCounter(label("replication_dropped_total"))
		s.replicationDuration = c.set.NewHistogram(label("replication_duration_seconds"))

		c.set.NewGauge(label("breaker_state"), func() float64 {
			return float64(s.breakerState.Load())
		})
		s.breakerTrips = c.set.NewCounter(label("breaker_trips_total"))

		c.stores[kind] = s
	}

	c.configFallbacks = c.set.NewCounter(p + "_config_fallback_total")
	c.secondaryRebuild = c.set.NewCounter(p + "_secondary_rebuild_total")
	c.set.NewGauge(p+"_replication_in_flight", func() float64 {
		return float64(c.inFlight.Load())
	})
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

func (c *Collector) store(kind types.StoreKind) (*storeMetrics, bool) {
	s, ok := c.stores[kind]
	return s, ok
}

// ----------------------
// Primary Operations
// ----------------------

// IncReadTotal increments the total read operations counter.
func (c *Collector) IncReadTotal(store types.StoreKind) {
	if s, ok := c.store(store); ok {
		s.readTotal.Inc()
	}
}

// IncReadError increments the read error counter.
func (c *Collector) IncReadError(store types.StoreKind) {
	if s, ok := c.store(store); ok {
		s.readErrors.Inc()
	}
}

// ObserveReadDuration records a read operation duration in seconds.
func (c *Collector) ObserveReadDuration(store types.StoreKind, seconds float64) {
	if s, ok := c.store(store); ok {
		s.readDuration.Update(seconds)
	}
}

// IncWriteTotal increments the total primary write operations counter.
func (c *Collector) IncWriteTotal(store types.StoreKind) {
	if s, ok := c.store(store); ok {
		s.writeTotal.Inc()
	}
}

// IncWriteError increments the primary write error counter.
func (c *Collector) IncWriteError(store types.StoreKind) {
	if s, ok := c.store(store); ok {
		s.writeErrors.Inc()
	}
}

// ObserveWriteDuration records a primary write duration in seconds.
func (c *Collector) ObserveWriteDuration(store types.StoreKind, seconds float64) {
	if s, ok := c.store(store); ok {
		s.writeDuration.Update(seconds)
	}
}

// ----------------------
// Primary Selection
// ----------------------

// IncConfigFallback increments the managed-default fallback counter.
func (c *Collector) IncConfigFallback() {
	c.configFallbacks.Inc()
}

// IncSecondaryRebuild increments the secondary store construction counter.
func (c *Collector) IncSecondaryRebuild() {
	c.secondaryRebuild.Inc()
}

// ----------------------
// Replication
// ----------------------

// IncReplicationTotal increments the replication attempt counter.
func (c *Collector) IncReplicationTotal(target types.StoreKind) {
	if s, ok := c.store(target); ok {
		s.replicationTotal.Inc()
	}
}

// IncReplicationError increments the failed replication counter.
func (c *Collector) IncReplicationError(target types.StoreKind) {
	if s, ok := c.store(target); ok {
		s.replicationErrors.Inc()
	}
}

// IncReplicationDropped increments the skipped replication counter.
func (c *Collector) IncReplicationDropped(target types.StoreKind) {
	if s, ok := c.store(target); ok {
		s.replicationDropped.Inc()
	}
}

// ObserveReplicationDuration records a replication attempt duration in seconds.
func (c *Collector) ObserveReplicationDuration(target types.StoreKind, seconds float64) {
	if s, ok := c.store(target); ok {
		s.replicationDuration.Update(seconds)
	}
}

// SetReplicationInFlight sets the in-flight replication gauge.
func (c *Collector) SetReplicationInFlight(n int) {
	c.inFlight.Store(int64(n))
}

// ----------------------
// Target Breaker
// ----------------------

// SetBreakerState sets the breaker state gauge.
func (c *Collector) SetBreakerState(target types.StoreKind, state int) {
	if s, ok := c.store(target); ok {
		s.breakerState.Store(int64(state))
	}
}

// IncBreakerTrip increments the counter when a target breaker opens.
func (c *Collector) IncBreakerTrip(target types.StoreKind) {
	if s, ok := c.store(target); ok {
		s.breakerTrips.Inc()
	}
}
