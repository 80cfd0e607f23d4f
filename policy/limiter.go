package policy

import "sync/atomic"

// Limiter bounds concurrent replication attempts without blocking.
//
// A nil or zero-capacity Limiter admits everything.
type Limiter struct {
	sem      chan struct{}
	inFlight atomic.Int64
}

// NewLimiter creates a limiter admitting at most n concurrent attempts.
// n <= 0 means unlimited.
func NewLimiter(n int) *Limiter {
	l := &Limiter{}
	if n > 0 {
		l.sem = make(chan struct{}, n)
	}

	return l
}

// TryAcquire takes a slot if one is free.
//
// Returns:
//   - bool: false if the limit is reached; the attempt should be dropped
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		default:
			return false
		}
	}
	l.inFlight.Add(1)

	return true
}

// Release frees a slot taken by TryAcquire.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	l.inFlight.Add(-1)
	if l.sem != nil {
		<-l.sem
	}
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	if l == nil {
		return 0
	}

	return int(l.inFlight.Load())
}

// Cap returns the limit, 0 when unlimited.
func (l *Limiter) Cap() int {
	if l == nil {
		return 0
	}

	return cap(l.sem)
}
