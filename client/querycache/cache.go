// Package querycache is the client-side key-addressed store of server-fetched
// query results. Every entry carries a staleness state; invalidation only
// flips entries to Stale and triggers refetch, so consuming the same change
// event twice cannot corrupt anything.
package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of one cache entry.
type State int

const (
	StateFresh State = iota
	StateStale
	StateFetching
	StateError
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateFetching:
		return "fetching"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Fetcher loads the authoritative value for a key, typically a pass-through
// HTTP GET against the query API.
type Fetcher func(ctx context.Context, key Key) (any, error)

// EntryInfo is the observable snapshot of one entry, handed to subscribers.
type EntryInfo struct {
	Key       Key
	State     State
	Value     any
	HasValue  bool
	FetchedAt time.Time
	StaleAt   time.Time
	Err       error
}

type entry struct {
	key        Key
	value      any
	hasValue   bool
	state      State
	err        error
	fetchedAt  time.Time
	staleAt    time.Time
	gen        uint64 // bumped by every invalidation and external write
	seq        uint64 // bumped per dispatched snapshot, orders deliveries
	subs       map[int]*subscriber
	lastActive time.Time
}

// subscriber serializes snapshot delivery for one callback. Snapshots carry
// the entry's sequence number at dispatch time; a snapshot arriving after a
// newer one has already been delivered is discarded, so the last snapshot a
// subscriber observes is always the newest.
type subscriber struct {
	mu      sync.Mutex
	lastSeq uint64
	cb      func(EntryInfo)
}

func (s *subscriber) deliver(seq uint64, info EntryInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.lastSeq {
		return
	}
	s.lastSeq = seq
	s.cb(info)
}

// Snapshot captures an entry's exact state before an optimistic update so a
// failed mutation can restore it bit-for-bit, without a refetch.
type Snapshot struct {
	key       Key
	existed   bool
	value     any
	hasValue  bool
	state     State
	err       error
	fetchedAt time.Time
	staleAt   time.Time
}

// Config tunes one Cache. Zero values fall back to the documented defaults.
type Config struct {
	Fetcher  Fetcher
	Policies PolicySet
	// RevalidateInterval is the background safety-net cadence: every
	// subscribed entry is refetched at this interval regardless of push
	// events, bounding worst-case staleness when the transport is down.
	RevalidateInterval time.Duration
	// IdleEviction removes entries that have had zero subscribers for this
	// long.
	IdleEviction time.Duration
	// Clock is injectable for tests.
	Clock func() time.Time
}

const (
	DefaultRevalidateInterval = 30 * time.Second
	DefaultIdleEviction       = 10 * time.Minute
)

// Cache is the process-wide shared query store. Construct one per client
// session and inject it everywhere; there is no package-level instance.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	sf      singleflight.Group
	nextSub int
}

func New(cfg Config) *Cache {
	if cfg.RevalidateInterval <= 0 {
		cfg.RevalidateInterval = DefaultRevalidateInterval
	}
	if cfg.IdleEviction <= 0 {
		cfg.IdleEviction = DefaultIdleEviction
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Cache{
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
}

// Start launches the background revalidation and eviction loop. It returns
// immediately; the loop stops when ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.cfg.RevalidateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.revalidate(ctx)
			}
		}
	}()
}

func (c *Cache) now() time.Time { return c.cfg.Clock() }

func (c *Cache) ensureEntryLocked(key Key) *entry {
	ks := key.String()
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{
			key:        key.Clone(),
			state:      StateStale,
			subs:       make(map[int]*subscriber),
			lastActive: c.now(),
		}
		c.entries[ks] = e
	}
	return e
}

func (c *Cache) infoLocked(e *entry) EntryInfo {
	return EntryInfo{
		Key:       e.key.Clone(),
		State:     e.state,
		Value:     e.value,
		HasValue:  e.hasValue,
		FetchedAt: e.fetchedAt,
		StaleAt:   e.staleAt,
		Err:       e.err,
	}
}

// notifyLocked dispatches the current snapshot to every subscriber. Delivery
// happens off the cache lock so a subscriber is free to call back into the
// cache; the per-subscriber sequence guard keeps snapshots in publish order.
func (c *Cache) notifyLocked(e *entry) {
	if len(e.subs) == 0 {
		return
	}
	e.seq++
	seq := e.seq
	info := c.infoLocked(e)
	for _, s := range e.subs {
		go s.deliver(seq, info)
	}
}

// Get returns the cached value for key, fetching it if missing or expired.
// Concurrent calls for the same missing key share a single network fetch.
func (c *Cache) Get(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e := c.ensureEntryLocked(key)
	e.lastActive = c.now()
	if e.hasValue && e.state == StateFresh && c.now().Before(e.staleAt) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()
	return c.fetch(ctx, key)
}

// Set writes an authoritative value from outside the fetch path (e.g. a
// mutation response). The generation bump means any in-flight fetch that
// lands afterwards re-marks the entry Stale instead of clobbering it.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	e := c.ensureEntryLocked(key)
	now := c.now()
	e.value = value
	e.hasValue = true
	e.err = nil
	e.state = StateFresh
	e.fetchedAt = now
	e.staleAt = now.Add(c.cfg.Policies.Resolve(key).MaxAge)
	e.gen++
	c.notifyLocked(e)
	c.mu.Unlock()
}

// fetch loads a key through singleflight: at most one in-flight request per
// key, all concurrent callers share its result.
func (c *Cache) fetch(ctx context.Context, key Key) (any, error) {
	ks := key.String()
	v, err, _ := c.sf.Do(ks, func() (any, error) {
		c.mu.Lock()
		e := c.ensureEntryLocked(key)
		startGen := e.gen
		e.state = StateFetching
		c.notifyLocked(e)
		c.mu.Unlock()

		value, fetchErr := c.cfg.Fetcher(ctx, key)

		c.mu.Lock()
		defer c.mu.Unlock()
		e = c.ensureEntryLocked(key)

		if fetchErr != nil {
			// Stale-while-error: keep the last known good value, if any.
			e.state = StateError
			e.err = fetchErr
			c.notifyLocked(e)
			return nil, fetchErr
		}

		now := c.now()
		e.value = value
		e.hasValue = true
		e.err = nil
		e.fetchedAt = now
		e.staleAt = now.Add(c.cfg.Policies.Resolve(key).MaxAge)

		if e.gen != startGen {
			// Invalidated while this fetch was in flight. The value may
			// already be outdated: keep it visible but refetch again.
			e.state = StateStale
			if len(e.subs) > 0 {
				go c.refetch(key)
			}
		} else {
			e.state = StateFresh
		}
		c.notifyLocked(e)
		return value, nil
	})
	return v, err
}

func (c *Cache) refetch(key Key) {
	if _, err := c.fetch(context.Background(), key); err != nil {
		logrus.Debugf("[Cache] Refetch %s failed: %v", key, err)
	}
}

// Invalidate marks every matching entry Stale and schedules a refetch for
// entries with at least one active subscription; the rest refetch lazily on
// their next subscription or Get. Safe to call with the same matcher any
// number of times.
func (c *Cache) Invalidate(m Matcher) {
	c.mu.Lock()
	var refetch []Key
	for _, e := range c.entries {
		if !m.Matches(e.key) {
			continue
		}
		e.gen++
		if e.state != StateFetching {
			e.state = StateStale
			if len(e.subs) > 0 {
				refetch = append(refetch, e.key.Clone())
			}
		}
		c.notifyLocked(e)
	}
	c.mu.Unlock()

	for _, key := range refetch {
		go c.refetch(key)
	}
}

// MarkAllStale invalidates every entry. Reconnect reconciliation uses this
// to cover the gap window after a transport drop, since no missed event can
// be replayed.
func (c *Cache) MarkAllStale() {
	c.Invalidate(All())
}

// NotifyFocus is the refetch-on-window-focus trigger: subscribed entries
// that are stale, errored or past their max-age refetch immediately.
func (c *Cache) NotifyFocus() {
	c.mu.Lock()
	var refetch []Key
	now := c.now()
	for _, e := range c.entries {
		if len(e.subs) == 0 || e.state == StateFetching {
			continue
		}
		if e.state != StateFresh || now.After(e.staleAt) {
			refetch = append(refetch, e.key.Clone())
		}
	}
	c.mu.Unlock()

	for _, key := range refetch {
		go c.refetch(key)
	}
}

// Subscription ties a view to one cache key. Closing it detaches the
// callback immediately; any in-flight fetch is left to complete and cache
// its result for the next subscriber.
type Subscription struct {
	cache *Cache
	key   Key
	id    int
	once  sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cache.mu.Lock()
		if e, ok := s.cache.entries[s.key.String()]; ok {
			delete(e.subs, s.id)
			e.lastActive = s.cache.now()
		}
		s.cache.mu.Unlock()
	})
}

// Subscribe registers a callback for every state change of key. If the entry
// is missing or no longer fresh it is fetched immediately; if a value is
// already present the callback fires right away with the current snapshot.
func (c *Cache) Subscribe(key Key, cb func(EntryInfo)) *Subscription {
	c.mu.Lock()
	e := c.ensureEntryLocked(key)
	c.nextSub++
	id := c.nextSub
	sub := &subscriber{cb: cb}
	e.subs[id] = sub
	e.lastActive = c.now()

	needsFetch := e.state != StateFetching &&
		(!e.hasValue || e.state != StateFresh || c.now().After(e.staleAt))
	if e.hasValue {
		e.seq++
		info := c.infoLocked(e)
		go sub.deliver(e.seq, info)
	}
	c.mu.Unlock()

	if needsFetch {
		go c.refetch(key)
	}
	return &Subscription{cache: c, key: key.Clone(), id: id}
}

// ApplyOptimistic speculatively rewrites an entry before server
// confirmation and returns the snapshot needed to roll it back exactly.
func (c *Cache) ApplyOptimistic(key Key, apply func(old any) any) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	ks := key.String()
	e, existed := c.entries[ks]
	if !existed {
		e = c.ensureEntryLocked(key)
	}
	snap := Snapshot{
		key:       key.Clone(),
		existed:   existed,
		value:     e.value,
		hasValue:  e.hasValue,
		state:     e.state,
		err:       e.err,
		fetchedAt: e.fetchedAt,
		staleAt:   e.staleAt,
	}

	now := c.now()
	e.value = apply(e.value)
	e.hasValue = true
	e.err = nil
	e.state = StateFresh
	e.fetchedAt = now
	e.staleAt = now.Add(c.cfg.Policies.Resolve(key).MaxAge)
	e.gen++
	c.notifyLocked(e)
	return snap
}

// Restore rolls an entry back to its pre-mutation snapshot. The exact prior
// value comes back, not a refetched one, so the UI reverts in a single step.
// An entry that only existed speculatively is removed again, unless someone
// subscribed to it in the meantime; then it stays as an empty Stale entry so
// those subscriptions keep receiving state changes.
func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ks := snap.key.String()
	if !snap.existed {
		e, ok := c.entries[ks]
		if !ok {
			return
		}
		if len(e.subs) == 0 {
			delete(c.entries, ks)
			return
		}
		e.value = nil
		e.hasValue = false
		e.state = StateStale
		e.err = nil
		e.fetchedAt = time.Time{}
		e.staleAt = time.Time{}
		e.gen++
		c.notifyLocked(e)
		return
	}
	e := c.ensureEntryLocked(snap.key)
	e.value = snap.value
	e.hasValue = snap.hasValue
	e.state = snap.state
	e.err = snap.err
	e.fetchedAt = snap.fetchedAt
	e.staleAt = snap.staleAt
	e.gen++
	c.notifyLocked(e)
}

// Peek returns the current snapshot without triggering any fetch.
func (c *Cache) Peek(key Key) (EntryInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return EntryInfo{}, false
	}
	return c.infoLocked(e), true
}

// Len reports how many entries the cache currently holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// revalidate is the periodic safety net: refetch every subscribed entry and
// evict entries nobody has watched for the idle window.
func (c *Cache) revalidate(ctx context.Context) {
	c.mu.Lock()
	now := c.now()
	var refetch []Key
	for ks, e := range c.entries {
		if len(e.subs) == 0 {
			if now.Sub(e.lastActive) > c.cfg.IdleEviction {
				delete(c.entries, ks)
			}
			continue
		}
		if e.state == StateFetching {
			continue
		}
		refetch = append(refetch, e.key.Clone())
	}
	c.mu.Unlock()

	for _, key := range refetch {
		if ctx.Err() != nil {
			return
		}
		c.refetch(key)
	}
}
