package config

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// WatcherConfig holds configuration for the NATS source.
type WatcherConfig struct {
	// Key is the KV key watched and cached.
	// Default: DefaultKey
	Key string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// FetchTimeout bounds direct KV reads.
	// Default: 10 seconds
	FetchTimeout time.Duration

	// OnChange is called after the cached value of Key changes.
	OnChange func(value []byte)
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:          DefaultKey,
		PollInterval: 5 * time.Second,
		FetchTimeout: 10 * time.Second,
	}
}

// WatcherOption configures the NATS source.
type WatcherOption func(*WatcherConfig)

// WithKey sets the KV key to watch.
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the source falls back to
// polling at this interval.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithFetchTimeout sets the timeout for direct KV reads.
func WithFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.FetchTimeout = d
	}
}

// WithOnChange registers a callback for changes of the watched key.
func WithOnChange(fn func(value []byte)) WatcherOption {
	return func(c *WatcherConfig) {
		c.OnChange = fn
	}
}

// NATS is a Source backed by a NATS JetStream KV bucket.
//
// After Start, the watched key is served from a cache kept current by a KV
// watch, so reading the settings once per operation costs no round trip.
// Other keys, and the watched key before Start, are read directly.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig

	mu      sync.RWMutex
	value   []byte
	primed  bool
	started bool

	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// Compile-time assertion that NATS implements Source.
var _ Source = (*NATS)(nil)

// NewNATS creates a NATS KV source.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new source
//   - error: Error if kv is nil
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "switchyard-config")
//
//	src, _ := config.NewNATS(kv, config.WithPollInterval(10*time.Second))
//	src.Start(ctx)
//	defer src.Close()
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("switchyard/config: KeyValue store is nil")
	}

	cfg := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &NATS{
		kv:      kv,
		config:  cfg,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Config returns the source configuration.
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// Start primes the cache and begins watching the configured key.
//
// Calling Start more than once has no effect. The watch stops when ctx is
// cancelled or Close is called.
func (n *NATS) Start(ctx context.Context) {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	n.fetch(ctx)
	go n.watchLoop(ctx)
}

// Close stops the watch. It is safe to call multiple times.
func (n *NATS) Close() error {
	n.closeOnce.Do(func() { close(n.done) })

	n.mu.RLock()
	started := n.started
	n.mu.RUnlock()
	if started {
		<-n.stopped
	}

	return nil
}

// Get returns the value stored under key.
func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	if key == n.config.Key {
		n.mu.RLock()
		primed, value := n.primed, n.value
		n.mu.RUnlock()
		if primed {
			return append([]byte(nil), value...), nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, n.config.FetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return entry.Value(), nil
}

// Put stores value under key.
//
// It is the settings-save path used by tooling; the router never writes.
func (n *NATS) Put(ctx context.Context, key string, value []byte) error {
	_, err := n.kv.Put(ctx, key, value)
	return err
}

// watchLoop is the main watch loop that monitors the KV key.
func (n *NATS) watchLoop(ctx context.Context) {
	defer close(n.stopped)

	watcher, err := n.kv.Watch(ctx, n.config.Key)
	if err != nil {
		n.pollLoop(ctx)
		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.pollLoop(ctx)
				return
			}
			if entry == nil {
				// End of initial values
				continue
			}
			n.processEntry(entry)
		}
	}
}

// pollLoop is a fallback polling loop when watch fails.
func (n *NATS) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.fetch(ctx)
		}
	}
}

// fetch reads the key directly and updates the cache.
func (n *NATS) fetch(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.FetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		n.store(nil)
	case err != nil:
		// Keep the last known value
	default:
		n.store(entry.Value())
	}
}

// processEntry applies a watch update to the cache.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.store(nil)
		return
	}
	n.store(entry.Value())
}

func (n *NATS) store(value []byte) {
	n.mu.Lock()
	changed := !n.primed || string(n.value) != string(value)
	n.value = append([]byte(nil), value...)
	if value == nil {
		n.value = nil
	}
	n.primed = true
	n.mu.Unlock()

	if changed && n.config.OnChange != nil {
		n.config.OnChange(value)
	}
}
