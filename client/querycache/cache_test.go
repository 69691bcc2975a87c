package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingFetcher serves a fixed value per key and counts how many times each
// key was actually fetched.
type countingFetcher struct {
	mu     sync.Mutex
	counts map[string]int
	values map[string]any
	errs   map[string]error
	delay  time.Duration
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{
		counts: make(map[string]int),
		values: make(map[string]any),
		errs:   make(map[string]error),
	}
}

func (f *countingFetcher) set(key string, value any) {
	f.mu.Lock()
	f.values[key] = value
	delete(f.errs, key)
	f.mu.Unlock()
}

func (f *countingFetcher) fail(key string, err error) {
	f.mu.Lock()
	f.errs[key] = err
	f.mu.Unlock()
}

func (f *countingFetcher) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *countingFetcher) Fetch(_ context.Context, key Key) (any, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ks := key.String()
	f.counts[ks]++
	if err, ok := f.errs[ks]; ok {
		return nil, err
	}
	return f.values[ks], nil
}

func newTestCache(f *countingFetcher) *Cache {
	return New(Config{
		Fetcher:            f.Fetch,
		RevalidateInterval: time.Hour,
		IdleEviction:       time.Hour,
	})
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

func TestGet_FetchesOnceThenServesFresh(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	v, err := c.Get(context.Background(), NewKey("projects"))
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if v != "v1" {
		t.Fatalf("Get() = %v, want v1", v)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background(), NewKey("projects")); err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
	}
	if got := f.count("projects"); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
}

func TestGet_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	f.delay = 50 * time.Millisecond
	c := newTestCache(f)

	const callers = 20
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), NewKey("projects"))
			if err != nil || v != "v1" {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d callers got a wrong result", failures.Load())
	}
	if got := f.count("projects"); got != 1 {
		t.Fatalf("fetch count = %d, want 1 (single flight)", got)
	}
}

func TestInvalidate_IsIdempotent(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	if _, err := c.Get(context.Background(), NewKey("projects")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	// Same matcher applied repeatedly, as when a duplicated change event is
	// routed twice. No subscribers, so no refetch fires.
	for i := 0; i < 3; i++ {
		c.Invalidate(Prefix("projects"))
	}

	info, ok := c.Peek(NewKey("projects"))
	if !ok {
		t.Fatal("entry evicted by invalidation")
	}
	if info.State != StateStale {
		t.Fatalf("state = %s, want stale", info.State)
	}
	if !info.HasValue || info.Value != "v1" {
		t.Fatalf("stale value lost: %+v", info)
	}
	if got := f.count("projects"); got != 1 {
		t.Fatalf("fetch count = %d, want 1 (no subscriber refetch)", got)
	}
}

func TestInvalidate_RefetchesSubscribedEntries(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	var last atomic.Value
	sub := c.Subscribe(NewKey("projects"), func(info EntryInfo) {
		last.Store(info)
	})
	defer sub.Close()

	waitFor(t, func() bool { return f.count("projects") == 1 }, "initial fetch")

	f.set("projects", "v2")
	c.Invalidate(Prefix("projects"))

	waitFor(t, func() bool {
		info, ok := c.Peek(NewKey("projects"))
		return ok && info.State == StateFresh && info.Value == "v2"
	}, "refetch after invalidation")

	waitFor(t, func() bool {
		info, _ := last.Load().(EntryInfo)
		return info.Value == "v2" && info.State == StateFresh
	}, "subscriber saw the new value")
}

func TestStaleWhileError_KeepsLastGoodValue(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	if _, err := c.Get(context.Background(), NewKey("projects")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	fetchErr := errors.New("upstream down")
	f.fail("projects", fetchErr)
	c.Invalidate(Prefix("projects"))

	_, err := c.Get(context.Background(), NewKey("projects"))
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Get() error = %v, want %v", err, fetchErr)
	}

	info, ok := c.Peek(NewKey("projects"))
	if !ok {
		t.Fatal("entry gone after failed refetch")
	}
	if info.State != StateError {
		t.Fatalf("state = %s, want error", info.State)
	}
	if !info.HasValue || info.Value != "v1" {
		t.Fatalf("last good value lost: %+v", info)
	}
	if !errors.Is(info.Err, fetchErr) {
		t.Fatalf("info.Err = %v, want %v", info.Err, fetchErr)
	}
}

func TestSet_DuringFetchMarksLandingValueStale(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "old")
	f.delay = 80 * time.Millisecond
	c := newTestCache(f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), NewKey("projects"))
	}()

	// Let the fetch start, then write a newer authoritative value under it.
	time.Sleep(20 * time.Millisecond)
	c.Set(NewKey("projects"), "newer")
	<-done

	// The slow fetch landed after the write, so whatever it carried must not
	// be treated as fresh.
	info, ok := c.Peek(NewKey("projects"))
	if !ok {
		t.Fatal("entry missing")
	}
	if info.State == StateFresh && info.Value == "old" {
		t.Fatalf("stale fetch result clobbered a newer write: %+v", info)
	}
}

func TestMarkAllStale_CoversEveryEntry(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "a")
	f.set("projects/p1", "b")
	f.set("nps", "c")
	c := newTestCache(f)

	for _, key := range []Key{NewKey("projects"), NewKey("projects", "p1"), NewKey("nps")} {
		if _, err := c.Get(context.Background(), key); err != nil {
			t.Fatalf("Get(%s) unexpected error: %v", key, err)
		}
	}

	c.MarkAllStale()

	for _, key := range []Key{NewKey("projects"), NewKey("projects", "p1"), NewKey("nps")} {
		info, ok := c.Peek(key)
		if !ok {
			t.Fatalf("entry %s missing", key)
		}
		if info.State != StateStale {
			t.Fatalf("entry %s state = %s, want stale", key, info.State)
		}
	}
}

func TestSubscribe_FiresImmediatelyWithCachedValue(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	if _, err := c.Get(context.Background(), NewKey("projects")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	got := make(chan EntryInfo, 1)
	sub := c.Subscribe(NewKey("projects"), func(info EntryInfo) {
		select {
		case got <- info:
		default:
		}
	})
	defer sub.Close()

	select {
	case info := <-got:
		if info.Value != "v1" {
			t.Fatalf("immediate snapshot value = %v, want v1", info.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate snapshot delivered")
	}
}

func TestNotifications_DeliveredInWriteOrder(t *testing.T) {
	f := newCountingFetcher()
	c := newTestCache(f)

	var mu sync.Mutex
	var seen []int
	sub := c.Subscribe(NewKey("projects"), func(info EntryInfo) {
		if v, ok := info.Value.(int); ok {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
		}
	})
	defer sub.Close()

	const writes = 500
	for i := 0; i < writes; i++ {
		c.Set(NewKey("projects"), i)
	}

	// The last snapshot the subscriber observes must be the newest write,
	// never an older one that happened to arrive late.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == writes-1
	}, "newest snapshot delivered last")

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("snapshot order inverted at %d: %v then %v", i, seen[i-1], seen[i])
		}
	}
}

func TestSubscriptionClose_StopsNotifications(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	var calls atomic.Int32
	sub := c.Subscribe(NewKey("projects"), func(EntryInfo) {
		calls.Add(1)
	})
	waitFor(t, func() bool { return calls.Load() > 0 }, "initial notification")
	sub.Close()
	sub.Close() // closing twice is harmless

	before := calls.Load()
	c.Invalidate(Prefix("projects"))
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != before {
		t.Fatalf("callback fired after Close: %d -> %d", before, calls.Load())
	}
}

func TestOptimistic_RestoreRevertsExactly(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects/p1", "server-value")
	c := newTestCache(f)

	if _, err := c.Get(context.Background(), NewKey("projects", "p1")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	before, _ := c.Peek(NewKey("projects", "p1"))

	snap := c.ApplyOptimistic(NewKey("projects", "p1"), func(old any) any {
		return "speculative"
	})

	info, _ := c.Peek(NewKey("projects", "p1"))
	if info.Value != "speculative" || info.State != StateFresh {
		t.Fatalf("optimistic value not applied: %+v", info)
	}

	c.Restore(snap)

	after, ok := c.Peek(NewKey("projects", "p1"))
	if !ok {
		t.Fatal("entry deleted by Restore")
	}
	if after.Value != before.Value || after.State != before.State ||
		!after.FetchedAt.Equal(before.FetchedAt) || !after.StaleAt.Equal(before.StaleAt) {
		t.Fatalf("rollback inexact:\n before %+v\n after  %+v", before, after)
	}
	if got := f.count("projects/p1"); got != 1 {
		t.Fatalf("rollback triggered a refetch: count = %d", got)
	}
}

func TestOptimistic_RestoreDeletesEntryThatNeverExisted(t *testing.T) {
	f := newCountingFetcher()
	c := newTestCache(f)

	snap := c.ApplyOptimistic(NewKey("projects", "ghost"), func(any) any {
		return "speculative"
	})
	if _, ok := c.Peek(NewKey("projects", "ghost")); !ok {
		t.Fatal("optimistic entry missing")
	}

	c.Restore(snap)
	if _, ok := c.Peek(NewKey("projects", "ghost")); ok {
		t.Fatal("entry should be removed: it did not exist before the mutation")
	}
}

func TestOptimistic_RestoreKeepsLateSubscribers(t *testing.T) {
	f := newCountingFetcher()
	c := newTestCache(f)

	snap := c.ApplyOptimistic(NewKey("projects", "p9"), func(any) any {
		return "speculative"
	})

	// Subscriber arrives between the optimistic write and the rollback.
	var mu sync.Mutex
	var seen []EntryInfo
	sub := c.Subscribe(NewKey("projects", "p9"), func(info EntryInfo) {
		mu.Lock()
		seen = append(seen, info)
		mu.Unlock()
	})
	defer sub.Close()

	c.Restore(snap)

	info, ok := c.Peek(NewKey("projects", "p9"))
	if !ok {
		t.Fatal("rollback removed an entry that still has subscribers")
	}
	if info.HasValue || info.State != StateStale {
		t.Fatalf("rolled-back entry should be empty and stale, got %+v", info)
	}

	c.Set(NewKey("projects", "p9"), "server-value")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range seen {
			if s.Value == "server-value" {
				return true
			}
		}
		return false
	}, "subscriber kept receiving updates after rollback")
}

func TestStats_SummarizesEntryStates(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "board")
	f.set("nps", "scores")
	c := newTestCache(f)

	if _, err := c.Get(context.Background(), NewKey("projects")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if _, err := c.Get(context.Background(), NewKey("nps")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	c.Invalidate(Exact("nps"))

	s := c.Stats()
	if s.Entries != 2 || s.Fresh != 1 || s.Stale != 1 || s.Errored != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.OldestFetch == "" {
		t.Fatal("OldestFetch should be set once a value is cached")
	}
}

func TestRevalidation_BoundsStalenessForSubscribedEntries(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := New(Config{
		Fetcher:            f.Fetch,
		RevalidateInterval: 20 * time.Millisecond,
		IdleEviction:       time.Hour,
	})

	sub := c.Subscribe(NewKey("projects"), func(EntryInfo) {})
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	// Even without any push event the entry keeps being refetched.
	waitFor(t, func() bool { return f.count("projects") >= 3 }, "periodic revalidation")
}

func TestRevalidation_EvictsIdleEntries(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := New(Config{
		Fetcher:            f.Fetch,
		RevalidateInterval: 20 * time.Millisecond,
		IdleEviction:       10 * time.Millisecond,
	})

	if _, err := c.Get(context.Background(), NewKey("projects")); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	waitFor(t, func() bool { return c.Len() == 0 }, "idle entry evicted")
}

func TestNotifyFocus_RefetchesStaleSubscribedEntries(t *testing.T) {
	f := newCountingFetcher()
	f.set("projects", "v1")
	c := newTestCache(f)

	sub := c.Subscribe(NewKey("projects"), func(EntryInfo) {})
	defer sub.Close()
	waitFor(t, func() bool { return f.count("projects") == 1 }, "initial fetch")

	// Force staleness without triggering the subscriber refetch path.
	c.mu.Lock()
	c.entries["projects"].state = StateStale
	c.mu.Unlock()

	c.NotifyFocus()
	waitFor(t, func() bool { return f.count("projects") >= 2 }, "focus refetch")
}
