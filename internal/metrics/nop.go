// Package metrics holds the metrics defaults shared by switchyard packages.
package metrics

import "github.com/arloliu/switchyard/types"

// NopMetrics records nothing. It is the collector of components built
// without one.
type NopMetrics struct{}

var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics returns a collector that records nothing.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// Or returns m, or a NopMetrics when m is nil.
func Or(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNopMetrics()
	}

	return m
}

func (*NopMetrics) IncReadTotal(types.StoreKind)                  {}
func (*NopMetrics) IncReadError(types.StoreKind)                  {}
func (*NopMetrics) ObserveReadDuration(types.StoreKind, float64)  {}
func (*NopMetrics) IncWriteTotal(types.StoreKind)                 {}
func (*NopMetrics) IncWriteError(types.StoreKind)                 {}
func (*NopMetrics) ObserveWriteDuration(types.StoreKind, float64) {}

func (*NopMetrics) IncConfigFallback()   {}
func (*NopMetrics) IncSecondaryRebuild() {}

func (*NopMetrics) IncReplicationTotal(types.StoreKind)                 {}
func (*NopMetrics) IncReplicationError(types.StoreKind)                 {}
func (*NopMetrics) IncReplicationDropped(types.StoreKind)               {}
func (*NopMetrics) ObserveReplicationDuration(types.StoreKind, float64) {}
func (*NopMetrics) SetReplicationInFlight(int)                          {}

func (*NopMetrics) SetBreakerState(types.StoreKind, int) {}
func (*NopMetrics) IncBreakerTrip(types.StoreKind)       {}
