package switchyard

import (
	"context"
	"time"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/adapter/managed"
	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/internal/metrics"
	"github.com/arloliu/switchyard/notify"
	"github.com/arloliu/switchyard/policy"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/types"
)

// DefaultReplicationTimeout bounds a single replication attempt.
const DefaultReplicationTimeout = 30 * time.Second

// SecondaryOpener constructs the secondary managed store from its endpoint
// URL and access key.
type SecondaryOpener func(ctx context.Context, url, key string) (adapter.Adapter, error)

// ReplicationHandler is called once per replication attempt, after it finished
// or was dropped. Finished attempts report from their replication goroutine,
// dropped ones from the caller's goroutine.
type ReplicationHandler func(outcome ReplicationOutcome)

// RouterConfig holds configuration for a Router.
type RouterConfig struct {
	// ConfigKey is the key the data source settings are stored under.
	ConfigKey string

	// Proxy is the transport used to reach the self-hosted store.
	// Without it the self-hosted store cannot be constructed.
	Proxy proxy.Executor

	// SecondaryOpener builds the secondary managed store.
	SecondaryOpener SecondaryOpener

	// ReplicationTimeout bounds each replication attempt. Zero means none.
	ReplicationTimeout time.Duration

	// MaxInFlight caps concurrently running replication attempts.
	// Zero means unlimited.
	MaxInFlight int

	// Breaker optionally skips targets that keep failing.
	Breaker *policy.TargetBreaker

	// OnReplicationOutcome observes every replication attempt.
	OnReplicationOutcome ReplicationHandler

	Notifier types.Notifier
	Metrics  types.MetricsCollector
	Logger   types.Logger
}

// DefaultConfig returns a RouterConfig with sensible defaults.
//
// Defaults:
//   - ReplicationTimeout: 30s
//   - MaxInFlight: unlimited
//   - Breaker: none
//   - SecondaryOpener: managed.OpenSecondary
//   - Notifier: logs through Logger
//
// Returns:
//   - *RouterConfig: Configuration with default settings
func DefaultConfig() *RouterConfig {
	return &RouterConfig{
		SecondaryOpener:    managed.OpenSecondary,
		ReplicationTimeout: DefaultReplicationTimeout,
		Metrics:            metrics.NewNopMetrics(),
		Logger:             logging.NewNopLogger(),
	}
}

// Option configures a RouterConfig.
type Option func(*RouterConfig)

// WithConfigKey sets the key the data source settings are read from.
//
// Parameters:
//   - key: Configuration key, config.DefaultKey if empty
//
// Returns:
//   - Option: Configuration option
func WithConfigKey(key string) Option {
	return func(c *RouterConfig) {
		c.ConfigKey = key
	}
}

// WithProxy sets the query proxy transport of the self-hosted store.
//
// Parameters:
//   - exec: proxy.HTTPClient, proxy.NATSClient or an in-process proxy.Server
//
// Returns:
//   - Option: Configuration option
func WithProxy(exec proxy.Executor) Option {
	return func(c *RouterConfig) {
		c.Proxy = exec
	}
}

// WithSecondaryOpener replaces how the secondary managed store is opened.
func WithSecondaryOpener(open SecondaryOpener) Option {
	return func(c *RouterConfig) {
		c.SecondaryOpener = open
	}
}

// WithReplicationTimeout bounds each replication attempt.
//
// Parameters:
//   - d: Per-attempt timeout, 0 disables the bound
//
// Returns:
//   - Option: Configuration option
func WithReplicationTimeout(d time.Duration) Option {
	return func(c *RouterConfig) {
		c.ReplicationTimeout = d
	}
}

// WithMaxInFlight caps concurrently running replication attempts.
//
// Attempts beyond the cap are dropped and reported as failures wrapping
// types.ErrReplicationDropped. They are never queued.
//
// Parameters:
//   - n: Maximum in-flight attempts, 0 means unlimited
//
// Returns:
//   - Option: Configuration option
func WithMaxInFlight(n int) Option {
	return func(c *RouterConfig) {
		c.MaxInFlight = n
	}
}

// WithBreaker skips replication to targets with repeated failures.
//
// Example:
//
//	router, _ := switchyard.NewRouter(source, managed,
//	    switchyard.WithBreaker(policy.NewTargetBreaker(policy.WithThreshold(5))),
//	)
func WithBreaker(b *policy.TargetBreaker) Option {
	return func(c *RouterConfig) {
		c.Breaker = b
	}
}

// WithOnReplicationOutcome sets a callback observing every replication attempt.
//
// Example:
//
//	switchyard.WithOnReplicationOutcome(func(o switchyard.ReplicationOutcome) {
//	    if o.Err != nil {
//	        audit.Record(o.Target, o.Table, o.Err)
//	    }
//	})
func WithOnReplicationOutcome(fn ReplicationHandler) Option {
	return func(c *RouterConfig) {
		c.OnReplicationOutcome = fn
	}
}

// WithNotifier sets where replication failures are reported to users.
//
// If not set, failures are only logged.
func WithNotifier(n types.Notifier) Option {
	return func(c *RouterConfig) {
		c.Notifier = n
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *RouterConfig) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// Use contrib/logging/zerolog.New() for zerolog output.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *RouterConfig) {
		c.Logger = logger
	}
}

// normalize fills nil dependencies left by options.
func (c *RouterConfig) normalize() {
	c.Metrics = metrics.Or(c.Metrics)
	c.Logger = logging.Or(c.Logger)
	if c.Notifier == nil {
		c.Notifier = notify.NewLog(c.Logger)
	}
	if c.SecondaryOpener == nil {
		c.SecondaryOpener = managed.OpenSecondary
	}
	if c.ReplicationTimeout < 0 {
		c.ReplicationTimeout = 0
	}
}
