// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "switchyard":
//
//	collector := vm.New()
//	router, _ := switchyard.NewRouter(source, managed,
//	    switchyard.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_read_total{store="managed"}
//   - myapp_replication_errors_total{store="self_hosted"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// # Metrics Provided
//
// Primary operations:
//   - {prefix}_read_total{store} - Counter of reads
//   - {prefix}_read_errors_total{store} - Counter of read errors
//   - {prefix}_read_duration_seconds{store} - Histogram of read latencies
//   - {prefix}_write_total{store} - Counter of primary writes
//   - {prefix}_write_errors_total{store} - Counter of primary write errors
//   - {prefix}_write_duration_seconds{store} - Histogram of primary write latencies
//
// Primary selection:
//   - {prefix}_config_fallback_total - Counter of managed-default fallbacks
//   - {prefix}_secondary_rebuild_total - Counter of secondary store constructions
//
// Replication:
//   - {prefix}_replication_total{store} - Counter of attempts per target
//   - {prefix}_replication_errors_total{store} - Counter of failed attempts
//   - {prefix}_replication_dropped_total{store} - Counter of skipped attempts
//   - {prefix}_replication_duration_seconds{store} - Histogram of attempt latencies
//   - {prefix}_replication_in_flight - Gauge of running attempts
//
// Target breaker:
//   - {prefix}_breaker_state{store} - Gauge (0=closed, 1=half-open, 2=open)
//   - {prefix}_breaker_trips_total{store} - Counter of breaker openings
//
// # Performance Notes
//
// This implementation pre-creates all metrics at initialization time
// using the NewXXX pattern (instead of GetOrCreateXXX) for optimal
// performance in hot paths, as recommended by the VictoriaMetrics documentation.
package vm
