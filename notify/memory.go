package notify

import (
	"context"
	"sync/atomic"

	"github.com/arloliu/switchyard/types"
)

// Memory is a bounded in-memory notification queue.
//
// Notify never blocks: when the queue is full the notification is dropped
// and counted.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Close marks the queue as closed
// but does not close the underlying channel, preventing panics from
// concurrent Notify calls during shutdown.
type Memory struct {
	queue    chan types.Notification
	closed   atomic.Bool
	dropped  atomic.Int64
	capacity int
}

// MemoryOption configures a Memory queue.
type MemoryOption func(*Memory)

// WithCapacity sets the maximum number of pending notifications.
//
// Parameters:
//   - n: Queue capacity (default: 256)
//
// Returns:
//   - MemoryOption: Configuration option
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		m.capacity = n
	}
}

// Compile-time assertion that Memory implements types.Notifier.
var _ types.Notifier = (*Memory)(nil)

// NewMemory creates an in-memory notification queue.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{capacity: 256}
	for _, opt := range opts {
		opt(m)
	}
	if m.capacity < 1 {
		m.capacity = 1
	}
	m.queue = make(chan types.Notification, m.capacity)

	return m
}

// Notify enqueues a notification, dropping it if the queue is full or closed.
func (m *Memory) Notify(message string, level types.Level) {
	if err := m.Enqueue(New(message, level)); err != nil {
		m.dropped.Add(1)
	}
}

// Enqueue adds n to the queue without blocking.
//
// Returns:
//   - error: types.ErrNotifyQueueFull if the queue is at capacity,
//     types.ErrNotifierClosed if the queue was closed
func (m *Memory) Enqueue(n types.Notification) error {
	if m.closed.Load() {
		return types.ErrNotifierClosed
	}

	select {
	case m.queue <- n:
		return nil
	default:
		return types.ErrNotifyQueueFull
	}
}

// Dequeue blocks until a notification is available or ctx is done.
//
// Returns false if ctx is done, or if the queue is closed and empty.
func (m *Memory) Dequeue(ctx context.Context) (types.Notification, bool) {
	for {
		select {
		case n := <-m.queue:
			return n, true
		default:
		}
		if m.closed.Load() {
			return types.Notification{}, false
		}

		select {
		case <-ctx.Done():
			return types.Notification{}, false
		case n := <-m.queue:
			return n, true
		}
	}
}

// TryDequeue returns the next notification without blocking.
func (m *Memory) TryDequeue() (types.Notification, bool) {
	select {
	case n := <-m.queue:
		return n, true
	default:
		return types.Notification{}, false
	}
}

// DrainAll removes and returns every pending notification.
func (m *Memory) DrainAll() []types.Notification {
	var out []types.Notification
	for {
		n, ok := m.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}

// Len returns the number of pending notifications.
func (m *Memory) Len() int {
	return len(m.queue)
}

// Cap returns the queue capacity.
func (m *Memory) Cap() int {
	return m.capacity
}

// Dropped returns how many notifications were discarded.
func (m *Memory) Dropped() int64 {
	return m.dropped.Load()
}

// Close stops accepting notifications. Pending ones can still be dequeued.
func (m *Memory) Close() {
	m.closed.Store(true)
}

// IsClosed reports whether Close was called.
func (m *Memory) IsClosed() bool {
	return m.closed.Load()
}
