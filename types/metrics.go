package types

// MetricsCollector defines methods for collecting operational metrics.
//
// All store-scoped methods accept a StoreKind parameter for labeling.
// Implementations should be thread-safe as methods may be called concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/switchyard/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	router, _ := switchyard.NewRouter(source, managed,
//	    switchyard.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Primary Operations
	// ----------------------

	// IncReadTotal increments the total read operations counter.
	IncReadTotal(store StoreKind)

	// IncReadError increments the read error counter.
	IncReadError(store StoreKind)

	// ObserveReadDuration records a read operation duration in seconds.
	ObserveReadDuration(store StoreKind, seconds float64)

	// IncWriteTotal increments the total primary write operations counter.
	IncWriteTotal(store StoreKind)

	// IncWriteError increments the primary write error counter.
	IncWriteError(store StoreKind)

	// ObserveWriteDuration records a primary write duration in seconds.
	ObserveWriteDuration(store StoreKind, seconds float64)

	// ----------------------
	// Primary Selection
	// ----------------------

	// IncConfigFallback increments the counter when a missing or malformed
	// configuration forces the managed default.
	IncConfigFallback()

	// IncSecondaryRebuild increments the counter when the cached secondary
	// adapter is (re)constructed.
	IncSecondaryRebuild()

	// ----------------------
	// Replication
	// ----------------------

	// IncReplicationTotal increments the counter of replication attempts to a target.
	IncReplicationTotal(target StoreKind)

	// IncReplicationError increments the counter of failed replication attempts.
	IncReplicationError(target StoreKind)

	// IncReplicationDropped increments the counter of skipped replication attempts.
	IncReplicationDropped(target StoreKind)

	// ObserveReplicationDuration records a replication attempt duration in seconds.
	ObserveReplicationDuration(target StoreKind, seconds float64)

	// SetReplicationInFlight sets the number of replication attempts currently running.
	SetReplicationInFlight(n int)

	// ----------------------
	// Target Breaker
	// ----------------------

	// SetBreakerState sets the breaker state gauge. 0=closed, 2=open.
	SetBreakerState(target StoreKind, state int)

	// IncBreakerTrip increments the counter when a target breaker opens.
	IncBreakerTrip(target StoreKind)
}
