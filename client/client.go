// Package client is the browser-equivalent sync core: a query cache kept
// consistent with server-side mutations through pushed change events, with
// reconnect reconciliation and optimistic mutations on top.
package client

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcvieira/fluxo/client/querycache"
	"github.com/rcvieira/fluxo/client/router"
	"github.com/rcvieira/fluxo/client/transport"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
)

type Config struct {
	// BaseURL is the REST API root, e.g. "http://localhost:3000".
	BaseURL string
	// Token is the session credential ("user:pass"). Empty means no
	// authenticated session: Start refuses to connect and the core stays
	// dormant.
	Token string

	// Fetcher and Doer override the default fasthttp implementations,
	// mainly for tests.
	Fetcher querycache.Fetcher
	Doer    Doer
	// Rules overrides the default invalidation table.
	Rules map[syncDomain.Kind]router.Rule

	Policies           querycache.PolicySet
	RevalidateInterval time.Duration
	IdleEviction       time.Duration

	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	MinBackoff        time.Duration
	MaxBackoff        time.Duration

	// OnStatus observes transport status transitions for UI indication.
	OnStatus func(status transport.Status, meta transport.Meta)

	// Clock is injectable for tests.
	Clock func() time.Time
}

// SyncClient owns one session's cache, router and transport. Construct it
// once at process start and inject it wherever cache access is needed.
type SyncClient struct {
	cfg    Config
	cache  *querycache.Cache
	router *router.Router
	tr     *transport.Transport
	doer   Doer

	mu           sync.Mutex
	started      bool
	wasConnected bool
	cancel       context.CancelFunc
}

func New(cfg Config) *SyncClient {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(cfg.BaseURL, cfg.Token)
	}
	doer := cfg.Doer
	if doer == nil {
		doer = NewHTTPDoer(cfg.BaseURL, cfg.Token)
	}

	cache := querycache.New(querycache.Config{
		Fetcher:            fetcher,
		Policies:           cfg.Policies,
		RevalidateInterval: cfg.RevalidateInterval,
		IdleEviction:       cfg.IdleEviction,
		Clock:              cfg.Clock,
	})

	c := &SyncClient{
		cfg:    cfg,
		cache:  cache,
		router: router.New(cache, cfg.Rules),
		doer:   doer,
	}

	c.tr = transport.New(transport.Config{
		URL:               wsURL(cfg.BaseURL),
		Token:             cfg.Token,
		HeartbeatInterval: cfg.HeartbeatInterval,
		PongTimeout:       cfg.PongTimeout,
		MinBackoff:        cfg.MinBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		OnEvent:           c.router.Enqueue,
		OnStatusChange:    c.onStatusChange,
	})
	return c
}

func wsURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Start connects the push channel and launches the cache's background
// loops. Without an authenticated session it returns ErrNoSession and does
// nothing: no connection is attempted while logged out.
func (c *SyncClient) Start(ctx context.Context) error {
	if c.cfg.Token == "" {
		return ErrNoSession
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.cache.Start(runCtx)
	go c.router.Run(runCtx)
	go c.tr.Run(runCtx)

	logrus.Debug("[Sync] Client started")
	return nil
}

// Close drops the connection and stops all background work. In-flight
// fetches are allowed to complete; their results land in the cache for any
// future subscriber.
func (c *SyncClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.started = false
}

// onStatusChange drives reconnect reconciliation: once a session has been
// connected and the transport comes back after a drop, an unknown number of
// change events was missed, so every entry is assumed stale and subscribed
// ones resynchronize wholesale.
func (c *SyncClient) onStatusChange(status transport.Status, meta transport.Meta) {
	if status == transport.StatusConnected {
		c.mu.Lock()
		reconnected := c.wasConnected
		c.wasConnected = true
		c.mu.Unlock()

		if reconnected {
			logrus.Infof("[Sync] Reconnected after %d attempts, reconciling cache", meta.Attempts)
			c.cache.MarkAllStale()
		}
	}

	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(status, meta)
	}
}

// Cache exposes the underlying query cache.
func (c *SyncClient) Cache() *querycache.Cache { return c.cache }

// Get fetches (or returns cached) data for key.
func (c *SyncClient) Get(ctx context.Context, key querycache.Key) (any, error) {
	return c.cache.Get(ctx, key)
}

// Subscribe ties a view callback to a cache key.
func (c *SyncClient) Subscribe(key querycache.Key, cb func(querycache.EntryInfo)) *querycache.Subscription {
	return c.cache.Subscribe(key, cb)
}

// NotifyFocus is the window-focus refetch trigger.
func (c *SyncClient) NotifyFocus() { c.cache.NotifyFocus() }

// Status reports the transport state for UI indication.
func (c *SyncClient) Status() transport.Status { return c.tr.Status() }

// Metadata reports reconnect diagnostics.
func (c *SyncClient) Metadata() transport.Meta { return c.tr.Metadata() }

// MutationRequest describes one state-changing API call.
type MutationRequest struct {
	Method string
	Path   string
	Body   any
}

// OptimisticUpdate rewrites one cache entry before the server confirms.
type OptimisticUpdate struct {
	Key querycache.Key
	// Apply produces the speculative value from the current one.
	Apply func(old any) any
}

// Mutate applies the optimistic updates, executes the request, and
// reconciles. On success every touched key is invalidated so the next fetch
// carries the authoritative server state; on failure every touched entry is
// rolled back to its exact pre-mutation snapshot and the error is returned,
// never swallowed. Mutations are not retried.
func (c *SyncClient) Mutate(ctx context.Context, req MutationRequest, updates ...OptimisticUpdate) (json.RawMessage, error) {
	snapshots := make([]querycache.Snapshot, 0, len(updates))
	for _, u := range updates {
		snapshots = append(snapshots, c.cache.ApplyOptimistic(u.Key, u.Apply))
	}

	result, err := c.doer(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		// Roll back in reverse order so overlapping updates unwind cleanly.
		for i := len(snapshots) - 1; i >= 0; i-- {
			c.cache.Restore(snapshots[i])
		}
		logrus.Debugf("[Sync] Mutation %s %s failed, rolled back %d entries: %v",
			req.Method, req.Path, len(snapshots), err)
		return nil, err
	}

	// Server response wins: refetch the touched keys rather than trusting
	// the speculative values. The pushed change event will re-invalidate
	// redundantly, which is harmless.
	for _, u := range updates {
		c.cache.Invalidate(querycache.Exact(u.Key...))
	}
	return result, nil
}
