package switchyard

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/types"
)

// secondaryEntry is one constructed secondary store.
type secondaryEntry struct {
	url     string
	adapter adapter.Adapter
}

// secondaryCache holds the single secondary store handle, keyed by endpoint URL.
//
// The handle is built on first use and rebuilt only when the configured URL
// changes. Replaced handles are not closed: replication attempts may still
// hold them. Racing first constructions may both build; the last store wins.
type secondaryCache struct {
	open    SecondaryOpener
	current atomic.Pointer[secondaryEntry]
	closed  atomic.Bool
	metrics types.MetricsCollector
	logger  types.Logger
}

func newSecondaryCache(open SecondaryOpener, m types.MetricsCollector, l types.Logger) *secondaryCache {
	return &secondaryCache{open: open, metrics: m, logger: l}
}

// getOrBuild returns the cached store for endpoint, constructing it when the
// cache is empty or holds another URL.
func (c *secondaryCache) getOrBuild(ctx context.Context, endpoint, key string) (adapter.Adapter, error) {
	if c.closed.Load() {
		return nil, types.ErrRouterClosed
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("%w: %s", types.ErrStoreNotConfigured, types.KindSecondaryManaged)
	}

	if e := c.current.Load(); e != nil && e.url == endpoint {
		return e.adapter, nil
	}

	a, err := c.open(ctx, endpoint, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: secondary opener returned nil", types.ErrNilAdapter)
	}

	prev := c.current.Swap(&secondaryEntry{url: endpoint, adapter: a})
	c.metrics.IncSecondaryRebuild()
	if prev != nil && prev.url != endpoint {
		c.logger.Info("secondary store endpoint changed, rebuilt handle", "url", redactURL(endpoint))
	} else {
		c.logger.Debug("secondary store handle built", "url", redactURL(endpoint))
	}

	return a, nil
}

// endpoint returns the URL of the cached store, empty if none.
func (c *secondaryCache) endpoint() string {
	if e := c.current.Load(); e != nil {
		return e.url
	}

	return ""
}

// close releases the cached store if it holds resources.
func (c *secondaryCache) close() error {
	c.closed.Store(true)
	e := c.current.Swap(nil)
	if e == nil {
		return nil
	}
	if closer, ok := e.adapter.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// redactURL drops credentials from raw for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil

	return u.String()
}
