package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rcvieira/fluxo/client/querycache"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
)

func newTestCache() *querycache.Cache {
	return querycache.New(querycache.Config{
		Fetcher: func(_ context.Context, key querycache.Key) (any, error) {
			return "fetched", nil
		},
		RevalidateInterval: time.Hour,
		IdleEviction:       time.Hour,
	})
}

func startRouter(t *testing.T, cache *querycache.Cache) *Router {
	t.Helper()
	r := New(cache, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Run(ctx)
	return r
}

func envelope(t *testing.T, kind syncDomain.Kind, payload string) syncDomain.Envelope {
	t.Helper()
	return syncDomain.Envelope{Event: string(kind), Payload: json.RawMessage(payload)}
}

func waitForState(t *testing.T, cache *querycache.Cache, key querycache.Key, want querycache.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, ok := cache.Peek(key); ok && info.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	info, _ := cache.Peek(key)
	t.Fatalf("entry %s never reached %s, last seen %s", key, want, info.State)
}

func TestRoute_ProjectEventInvalidatesWholeProjectsTree(t *testing.T) {
	cache := newTestCache()
	cache.Set(querycache.NewKey("projects"), "list")
	cache.Set(querycache.NewKey("projects", "p1"), "detail")
	cache.Set(querycache.NewKey("nps"), "scores")

	r := startRouter(t, cache)
	r.Enqueue(envelope(t, syncDomain.KindProjectUpdated, `{"id":"p1"}`))

	waitForState(t, cache, querycache.NewKey("projects"), querycache.StateStale)
	waitForState(t, cache, querycache.NewKey("projects", "p1"), querycache.StateStale)

	if info, _ := cache.Peek(querycache.NewKey("nps")); info.State != querycache.StateFresh {
		t.Fatalf("nps entry should be untouched, state = %s", info.State)
	}
}

func TestRoute_ChildEventScopesToParentProject(t *testing.T) {
	cache := newTestCache()
	cache.Set(querycache.NewKey("projects", "p1", "comments"), "a")
	cache.Set(querycache.NewKey("projects", "p2", "comments"), "b")

	r := startRouter(t, cache)
	r.Enqueue(envelope(t, syncDomain.KindCommentCreated, `{"id":"c1","project_id":"p1"}`))

	waitForState(t, cache, querycache.NewKey("projects", "p1", "comments"), querycache.StateStale)

	if info, _ := cache.Peek(querycache.NewKey("projects", "p2", "comments")); info.State != querycache.StateFresh {
		t.Fatalf("sibling project invalidated, state = %s", info.State)
	}
}

func TestRoute_NpsEventInvalidatesAggregates(t *testing.T) {
	cache := newTestCache()
	cache.Set(querycache.NewKey("projects", "p1", "nps"), "one")
	cache.Set(querycache.NewKey("nps"), "all")

	r := startRouter(t, cache)
	r.Enqueue(envelope(t, syncDomain.KindNpsCreated, `{"id":"n1","project_id":"p1"}`))

	waitForState(t, cache, querycache.NewKey("projects", "p1", "nps"), querycache.StateStale)
	waitForState(t, cache, querycache.NewKey("nps"), querycache.StateStale)
}

func TestRoute_MalformedEventIsDroppedWithoutStallingQueue(t *testing.T) {
	cache := newTestCache()
	cache.Set(querycache.NewKey("projects"), "list")

	r := startRouter(t, cache)
	r.Enqueue(envelope(t, syncDomain.KindProjectUpdated, `{broken`))
	r.Enqueue(envelope(t, syncDomain.KindCommentCreated, `{"id":"c1"}`)) // missing project_id
	r.Enqueue(envelope(t, syncDomain.KindProjectUpdated, `{"id":"p1"}`))

	// The two bad events are dropped and the valid one still lands.
	waitForState(t, cache, querycache.NewKey("projects"), querycache.StateStale)
}

func TestRoute_UnknownEventKindIsIgnored(t *testing.T) {
	cache := newTestCache()
	cache.Set(querycache.NewKey("projects"), "list")

	r := startRouter(t, cache)
	r.Enqueue(envelope(t, syncDomain.Kind("render:finished"), `{"id":"x"}`))
	r.Enqueue(envelope(t, syncDomain.KindProjectDeleted, `{"id":"p1"}`))

	waitForState(t, cache, querycache.NewKey("projects"), querycache.StateStale)
}

func TestDefaultRules_CoverEveryRoutableKind(t *testing.T) {
	rules := DefaultRules()
	for _, kind := range syncDomain.Kinds {
		if _, ok := rules[kind]; !ok {
			t.Errorf("no rule for %s", kind)
		}
	}
}
