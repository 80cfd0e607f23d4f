package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/types"
)

// Sink receives notifications drained by a Relay.
type Sink func(ctx context.Context, n types.Notification) error

// RelayConfig configures a Relay.
type RelayConfig struct {
	// DeliverTimeout bounds each sink call.
	// Default: 5 seconds
	DeliverTimeout time.Duration

	// Logger reports sink failures.
	Logger types.Logger

	// OnError is called after a failed delivery (optional).
	OnError func(n types.Notification, err error)
}

// DefaultRelayConfig returns the default relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		DeliverTimeout: 5 * time.Second,
	}
}

// RelayOption configures a Relay.
type RelayOption func(*RelayConfig)

// WithDeliverTimeout sets the timeout for each sink call.
func WithDeliverTimeout(d time.Duration) RelayOption {
	return func(c *RelayConfig) {
		c.DeliverTimeout = d
	}
}

// WithRelayLogger sets the logger for the relay.
func WithRelayLogger(l types.Logger) RelayOption {
	return func(c *RelayConfig) {
		c.Logger = l
	}
}

// WithOnError sets the delivery failure callback.
func WithOnError(fn func(types.Notification, error)) RelayOption {
	return func(c *RelayConfig) {
		c.OnError = fn
	}
}

// Relay drains a Memory queue into a sink on a single goroutine.
//
// Each notification is delivered at most once; failed deliveries are logged
// and dropped.
type Relay struct {
	config RelayConfig
	queue  *Memory
	sink   Sink

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	sent    atomic.Int64
	failed  atomic.Int64
}

// NewRelay creates a relay from queue to sink.
func NewRelay(queue *Memory, sink Sink, opts ...RelayOption) *Relay {
	cfg := DefaultRelayConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Logger = logging.Or(cfg.Logger)

	return &Relay{config: cfg, queue: queue, sink: sink}
}

// Start begins draining the queue.
//
// Returns:
//   - error: error if the relay is already running
func (r *Relay) Start() error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("switchyard: relay already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Go(func() { r.loop(ctx) })

	return nil
}

// Stop stops the relay and delivers what is still queued.
//
// This method blocks until the relay goroutine has exited.
func (r *Relay) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}

	r.cancel()
	r.wg.Wait()

	for _, n := range r.queue.DrainAll() {
		r.deliver(context.Background(), n)
	}
}

// IsRunning returns whether the relay is currently running.
func (r *Relay) IsRunning() bool {
	return r.running.Load()
}

// Stats returns the number of delivered and failed notifications.
func (r *Relay) Stats() (sent, failed int64) {
	return r.sent.Load(), r.failed.Load()
}

func (r *Relay) loop(ctx context.Context) {
	for {
		n, ok := r.queue.Dequeue(ctx)
		if !ok {
			return
		}
		r.deliver(ctx, n)
	}
}

func (r *Relay) deliver(ctx context.Context, n types.Notification) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.DeliverTimeout)
	defer cancel()

	if err := r.sink(dctx, n); err != nil {
		r.failed.Add(1)
		r.config.Logger.Warn("notification delivery failed",
			"id", n.ID,
			"level", string(n.Level),
			"error", err,
		)
		if r.config.OnError != nil {
			r.config.OnError(n, err)
		}

		return
	}
	r.sent.Add(1)
}
