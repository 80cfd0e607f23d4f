package testutil

import (
	"sync"

	"github.com/arloliu/switchyard/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertions.
type TestMetricsCollector struct {
	mu sync.RWMutex

	ReadTotal     map[types.StoreKind]int64
	ReadErrors    map[types.StoreKind]int64
	WriteTotal    map[types.StoreKind]int64
	WriteErrors   map[types.StoreKind]int64
	WriteDuration map[types.StoreKind][]float64

	ConfigFallbacks  int64
	SecondaryRebuild int64

	ReplicationTotal    map[types.StoreKind]int64
	ReplicationErrors   map[types.StoreKind]int64
	ReplicationDropped  map[types.StoreKind]int64
	ReplicationDuration map[types.StoreKind][]float64
	MaxInFlight         int

	BreakerState map[types.StoreKind]int
	BreakerTrips map[types.StoreKind]int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		ReadTotal:           make(map[types.StoreKind]int64),
		ReadErrors:          make(map[types.StoreKind]int64),
		WriteTotal:          make(map[types.StoreKind]int64),
		WriteErrors:         make(map[types.StoreKind]int64),
		WriteDuration:       make(map[types.StoreKind][]float64),
		ReplicationTotal:    make(map[types.StoreKind]int64),
		ReplicationErrors:   make(map[types.StoreKind]int64),
		ReplicationDropped:  make(map[types.StoreKind]int64),
		ReplicationDuration: make(map[types.StoreKind][]float64),
		BreakerState:        make(map[types.StoreKind]int),
		BreakerTrips:        make(map[types.StoreKind]int64),
	}
}

func (m *TestMetricsCollector) IncReadTotal(store types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadTotal[store]++
}

func (m *TestMetricsCollector) IncReadError(store types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadErrors[store]++
}

func (m *TestMetricsCollector) ObserveReadDuration(_ types.StoreKind, _ float64) {}

func (m *TestMetricsCollector) IncWriteTotal(store types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteTotal[store]++
}

func (m *TestMetricsCollector) IncWriteError(store types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErrors[store]++
}

func (m *TestMetricsCollector) ObserveWriteDuration(store types.StoreKind, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteDuration[store] = append(m.WriteDuration[store], seconds)
}

func (m *TestMetricsCollector) IncConfigFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfigFallbacks++
}

func (m *TestMetricsCollector) IncSecondaryRebuild() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SecondaryRebuild++
}

func (m *TestMetricsCollector) IncReplicationTotal(target types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicationTotal[target]++
}

func (m *TestMetricsCollector) IncReplicationError(target types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicationErrors[target]++
}

func (m *TestMetricsCollector) IncReplicationDropped(target types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicationDropped[target]++
}

func (m *TestMetricsCollector) ObserveReplicationDuration(target types.StoreKind, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicationDuration[target] = append(m.ReplicationDuration[target], seconds)
}

func (m *TestMetricsCollector) SetReplicationInFlight(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.MaxInFlight {
		m.MaxInFlight = n
	}
}

func (m *TestMetricsCollector) SetBreakerState(target types.StoreKind, state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BreakerState[target] = state
}

func (m *TestMetricsCollector) IncBreakerTrip(target types.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BreakerTrips[target]++
}

// GetReplicationTotal returns the replication attempt count for target.
func (m *TestMetricsCollector) GetReplicationTotal(target types.StoreKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ReplicationTotal[target]
}

// GetReplicationErrors returns the failed replication count for target.
func (m *TestMetricsCollector) GetReplicationErrors(target types.StoreKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ReplicationErrors[target]
}

// GetReplicationDropped returns the skipped replication count for target.
func (m *TestMetricsCollector) GetReplicationDropped(target types.StoreKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ReplicationDropped[target]
}

// GetConfigFallbacks returns how often the managed default was used.
func (m *TestMetricsCollector) GetConfigFallbacks() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ConfigFallbacks
}

// GetSecondaryRebuilds returns how often the secondary adapter was built.
func (m *TestMetricsCollector) GetSecondaryRebuilds() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.SecondaryRebuild
}

// GetWriteErrors returns the primary write error count for store.
func (m *TestMetricsCollector) GetWriteErrors(store types.StoreKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.WriteErrors[store]
}
