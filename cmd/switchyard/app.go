package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	vmmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/switchyard"
	"github.com/arloliu/switchyard/adapter/managed"
	"github.com/arloliu/switchyard/config"
	"github.com/arloliu/switchyard/contrib/metrics/vm"
	"github.com/arloliu/switchyard/internal/cliconfig"
	"github.com/arloliu/switchyard/notify"
	"github.com/arloliu/switchyard/policy"
	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/types"
)

// app wires the library components from the CLI configuration.
//
// Resources are opened lazily and released in reverse order by Close.
type app struct {
	cfg     *cliconfig.Config
	logger  types.Logger
	metrics *vm.Collector

	nc      *nats.Conn
	closers []func() error
}

func newApp(opts *RootOptions) *app {
	return &app{
		cfg:    opts.Config,
		logger: opts.Logger,
		metrics: vm.New(
			vm.WithPrefix(opts.Config.Metrics.Prefix),
			vm.WithMetricsSet(vmmetrics.NewSet()),
		),
	}
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases every opened resource.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}

func (a *app) natsConn() (*nats.Conn, error) {
	if a.nc != nil {
		return a.nc, nil
	}
	if a.cfg.NATS.URL == "" {
		return nil, errors.New("nats.url is not configured")
	}

	nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name("switchyard"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	a.nc = nc
	a.onClose(func() error {
		nc.Close()
		return nil
	})

	return nc, nil
}

// source builds the data source settings reader.
func (a *app) source(ctx context.Context) (config.Source, error) {
	switch a.cfg.Source.Kind {
	case cliconfig.SourceNATS:
		nc, err := a.natsConn()
		if err != nil {
			return nil, err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, err
		}
		kv, err := js.KeyValue(ctx, a.cfg.Source.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open settings bucket %q: %w", a.cfg.Source.Bucket, err)
		}

		var watchOpts []config.WatcherOption
		if a.cfg.Source.Key != "" {
			watchOpts = append(watchOpts, config.WithKey(a.cfg.Source.Key))
		}
		src, err := config.NewNATS(kv, watchOpts...)
		if err != nil {
			return nil, err
		}
		src.Start(ctx)
		a.onClose(src.Close)

		return src, nil

	default:
		return config.NewFile(a.cfg.Source.Path), nil
	}
}

// executor builds the proxy transport, or nil when none is configured.
func (a *app) executor() (proxy.Executor, error) {
	switch a.cfg.Proxy.Transport {
	case cliconfig.TransportNATS:
		nc, err := a.natsConn()
		if err != nil {
			return nil, err
		}

		return proxy.NewNATSClient(nc,
			proxy.WithSubject(a.cfg.Proxy.Subject),
			proxy.WithRequestTimeout(a.cfg.Proxy.RequestTimeout.Std()),
		), nil

	default:
		if a.cfg.Proxy.Endpoint == "" {
			return nil, nil
		}

		var tokens proxy.TokenSource
		switch {
		case a.cfg.Proxy.Secret != "":
			tokens = proxy.SigningTokenSource([]byte(a.cfg.Proxy.Secret), "switchyard-router", a.cfg.Proxy.TokenTTL.Std())
		case a.cfg.Proxy.APIKey != "":
			tokens = proxy.StaticToken(a.cfg.Proxy.APIKey)
		}

		return proxy.NewHTTPClient(a.cfg.Proxy.Endpoint, proxy.WithTokenSource(tokens)), nil
	}
}

// notifier reports replication failures to the log and, when enabled, to
// the JetStream notification stream through a bounded relay.
func (a *app) notifier() (types.Notifier, error) {
	log := notify.NewLog(a.logger)
	if !a.cfg.Notify.Stream {
		return log, nil
	}

	nc, err := a.natsConn()
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	stream, err := notify.NewStream(js,
		notify.WithStreamName(a.cfg.Notify.StreamName),
		notify.WithStreamLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	queue := notify.NewMemory()
	relay := notify.NewRelay(queue, stream.Publish, notify.WithRelayLogger(a.logger))
	if err := relay.Start(); err != nil {
		return nil, err
	}
	a.onClose(func() error {
		relay.Stop()
		queue.Close()
		return nil
	})

	return notify.Fanout{log, queue}, nil
}

// router opens the managed store and builds a Router over it.
func (a *app) router(ctx context.Context) (*switchyard.Router, error) {
	source, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}
	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}

	m, err := managed.Open(ctx, a.cfg.Managed.DSN)
	if err != nil {
		return nil, fmt.Errorf("open managed store: %w", err)
	}
	a.onClose(m.Close)

	opts := []switchyard.Option{
		switchyard.WithLogger(a.logger),
		switchyard.WithMetrics(a.metrics),
		switchyard.WithNotifier(notifier),
		switchyard.WithReplicationTimeout(a.cfg.Router.ReplicationTimeout.Std()),
		switchyard.WithMaxInFlight(a.cfg.Router.MaxInFlight),
	}
	if a.cfg.Source.Key != "" {
		opts = append(opts, switchyard.WithConfigKey(a.cfg.Source.Key))
	}
	if exec != nil {
		opts = append(opts, switchyard.WithProxy(exec))
	}
	if a.cfg.Router.BreakerEnabled {
		opts = append(opts, switchyard.WithBreaker(policy.NewTargetBreaker(
			policy.WithThreshold(a.cfg.Router.BreakerThreshold),
			policy.WithCooldown(a.cfg.Router.BreakerCooldown.Std()),
			policy.WithBreakerMetrics(a.metrics),
			policy.WithBreakerLogger(a.logger),
		)))
	}

	r, err := switchyard.NewRouter(source, m, opts...)
	if err != nil {
		return nil, err
	}
	a.onClose(r.Close)

	return r, nil
}

// withTimeout bounds one-shot commands.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
