package policy

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/internal/metrics"
	"github.com/arloliu/switchyard/types"
)

// Breaker states reported through MetricsCollector.SetBreakerState.
const (
	StateClosed   = 0
	StateHalfOpen = 1
	StateOpen     = 2
)

// TargetBreaker skips replication to stores that keep failing.
//
// Tracks consecutive failures per store kind and opens once a threshold is
// reached. An open target is skipped until the cooldown since its last
// failure has passed; then one probe is allowed. A successful probe closes
// the breaker, a failed one restarts the cooldown.
type TargetBreaker struct {
	threshold int
	cooldown  time.Duration
	metrics   types.MetricsCollector
	logger    types.Logger
	now       func() time.Time

	mu      sync.Mutex
	targets map[types.StoreKind]*targetState
}

type targetState struct {
	failures    atomic.Int32
	lastFailure atomic.Int64 // Unix nano
	probing     atomic.Bool
}

// BreakerOption configures a TargetBreaker.
type BreakerOption func(*TargetBreaker)

// WithThreshold sets the number of consecutive failures that opens a target.
//
// Parameters:
//   - n: Number of failures required, values below 1 are ignored
//
// Returns:
//   - BreakerOption: Configuration option
func WithThreshold(n int) BreakerOption {
	return func(b *TargetBreaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long an open target is skipped.
//
// Parameters:
//   - d: Cooldown duration
//
// Returns:
//   - BreakerOption: Configuration option
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *TargetBreaker) {
		b.cooldown = d
	}
}

// WithBreakerMetrics sets the metrics collector for the breaker.
func WithBreakerMetrics(m types.MetricsCollector) BreakerOption {
	return func(b *TargetBreaker) {
		b.metrics = m
	}
}

// WithBreakerLogger sets the logger for the breaker.
func WithBreakerLogger(l types.Logger) BreakerOption {
	return func(b *TargetBreaker) {
		b.logger = l
	}
}

// withClock replaces the time source. Used by tests.
func withClock(now func() time.Time) BreakerOption {
	return func(b *TargetBreaker) {
		b.now = now
	}
}

// NewTargetBreaker creates a new TargetBreaker.
//
// Defaults: threshold=3, cooldown=30s
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *TargetBreaker: A new breaker with every target closed
func NewTargetBreaker(opts ...BreakerOption) *TargetBreaker {
	b := &TargetBreaker{
		threshold: 3,
		cooldown:  30 * time.Second,
		now:       time.Now,
		targets:   make(map[types.StoreKind]*targetState),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.metrics = metrics.Or(b.metrics)
	b.logger = logging.Or(b.logger)

	return b
}

// Allow reports whether a replication attempt to target may run.
//
// While open and cooling down it returns false. After the cooldown exactly
// one caller gets true until that probe is recorded.
//
// Parameters:
//   - target: The store about to receive a replication attempt
//
// Returns:
//   - bool: true if the attempt may run
func (b *TargetBreaker) Allow(target types.StoreKind) bool {
	s := b.state(target)
	if int(s.failures.Load()) < b.threshold {
		return true
	}

	last := time.Unix(0, s.lastFailure.Load())
	if b.now().Sub(last) < b.cooldown {
		return false
	}

	if !s.probing.CompareAndSwap(false, true) {
		return false
	}
	b.metrics.SetBreakerState(target, StateHalfOpen)
	b.logger.Debug("target breaker half-open", "target", target.String())

	return true
}

// RecordFailure counts a failed attempt against target.
//
// Parameters:
//   - target: The store that failed
func (b *TargetBreaker) RecordFailure(target types.StoreKind) {
	s := b.state(target)
	s.lastFailure.Store(b.now().UnixNano())
	wasProbing := s.probing.Swap(false)
	n := int(s.failures.Add(1))

	if n == b.threshold || (wasProbing && n > b.threshold) {
		b.metrics.IncBreakerTrip(target)
		b.metrics.SetBreakerState(target, StateOpen)
		b.logger.Warn("target breaker opened",
			"target", target.String(),
			"failures", n,
			"cooldown", b.cooldown.String(),
		)
	}
}

// RecordSuccess closes the breaker of target.
//
// Parameters:
//   - target: The store that succeeded
func (b *TargetBreaker) RecordSuccess(target types.StoreKind) {
	s := b.state(target)
	s.probing.Store(false)
	prev := int(s.failures.Swap(0))
	if prev >= b.threshold {
		b.metrics.SetBreakerState(target, StateClosed)
		b.logger.Info("target breaker closed", "target", target.String())
	}
}

// Failures returns the current consecutive failure count of target.
func (b *TargetBreaker) Failures(target types.StoreKind) int {
	return int(b.state(target).failures.Load())
}

// State returns StateClosed, StateHalfOpen or StateOpen for target.
func (b *TargetBreaker) State(target types.StoreKind) int {
	s := b.state(target)
	switch {
	case int(s.failures.Load()) < b.threshold:
		return StateClosed
	case s.probing.Load():
		return StateHalfOpen
	default:
		return StateOpen
	}
}

func (b *TargetBreaker) state(target types.StoreKind) *targetState {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.targets[target]
	if !ok {
		s = &targetState{}
		b.targets[target] = s
	}

	return s
}
