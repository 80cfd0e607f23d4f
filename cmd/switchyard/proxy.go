package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	sqladapter "github.com/arloliu/switchyard/adapter/sql"
	"github.com/arloliu/switchyard/proxy"
)

// NewProxyCommand creates the proxy command group.
func NewProxyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the query proxy in front of the self-hosted database",
	}
	cmd.AddCommand(newProxyServeCommand(rootOpts))

	return cmd
}

func newProxyServeCommand(rootOpts *RootOptions) *cobra.Command {
	var withNATS bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve proxy requests over HTTP and optionally NATS",
		Long: `Serve proxy requests over HTTP and optionally NATS.

HTTP requests must carry a bearer token signed with SWITCHYARD_PROXY_SECRET
or the static SWITCHYARD_PROXY_API_KEY. NATS requests rely on the NATS
server's own authorization.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProxyServe(cmd.Context(), rootOpts, withNATS)
		},
	}
	cmd.Flags().BoolVar(&withNATS, "nats", false, "Also answer requests on the configured NATS subject")

	return cmd
}

func runProxyServe(parent context.Context, rootOpts *RootOptions, withNATS bool) error {
	cfg := rootOpts.Config
	logger := rootOpts.Logger

	if cfg.Proxy.Secret == "" && cfg.Proxy.APIKey == "" {
		return errors.New("SWITCHYARD_PROXY_SECRET or SWITCHYARD_PROXY_API_KEY is required")
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a := newApp(rootOpts)
	defer func() { _ = a.Close() }()

	pool := sqladapter.NewPool(proxy.MySQLOpener)
	a.onClose(pool.Close)

	srv := proxy.NewServer(pool,
		proxy.WithSecret([]byte(cfg.Proxy.Secret)),
		proxy.WithAPIKey(cfg.Proxy.APIKey),
		proxy.WithServerLogger(logger),
		proxy.WithStatementTimeout(cfg.Proxy.StatementTimeout.Std()),
	)

	if withNATS {
		nc, err := a.natsConn()
		if err != nil {
			return err
		}
		sub, err := srv.ServeNATS(nc, cfg.Proxy.Subject, cfg.Proxy.Queue)
		if err != nil {
			return err
		}
		a.onClose(func() error { return drain(sub) })
		logger.Info("proxy NATS responder started", "subject", sub.Subject, "queue", sub.Queue)
	}

	mux := chi.NewRouter()
	mux.Mount("/", srv.Handler())

	var wg sync.WaitGroup
	if cfg.Metrics.Listen == "" {
		mux.Get("/metrics", a.metrics.Handler)
	} else {
		metricsMux := chi.NewRouter()
		metricsMux.Get("/metrics", a.metrics.Handler)
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Go(func() { serve(ctx, cancel, rootOpts, metricsSrv, "metrics") })
	}

	httpSrv := &http.Server{
		Addr:              cfg.Proxy.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Go(func() { serve(ctx, cancel, rootOpts, httpSrv, "proxy") })

	<-ctx.Done()
	logger.Info("shutdown initiated")
	wg.Wait()
	logger.Info("shutdown complete")

	return nil
}

// serve runs srv until ctx is done, then drains it. A listener failure
// cancels ctx so the whole process shuts down.
func serve(ctx context.Context, cancel context.CancelFunc, rootOpts *RootOptions, srv *http.Server, name string) {
	logger := rootOpts.Logger

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("server starting", "server", name, "address", srv.Addr)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "server", name, "error", err)
			cancel()
		}

		return
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), rootOpts.Config.Proxy.ShutdownTimeout.Std())
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "server", name, "error", err)
	}
}

func drain(sub *nats.Subscription) error {
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}

	return nil
}
