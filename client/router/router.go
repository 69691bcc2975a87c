// Package router maps incoming change events to cache invalidations through
// one declarative kind-to-matcher table, replacing per-event ad hoc
// key-prefix scans. Events run through a single ordered queue per client;
// one malformed event is logged and dropped without stalling the rest.
package router

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rcvieira/fluxo/client/querycache"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
)

// Rule derives the matchers one event invalidates from its payload.
type Rule func(p syncDomain.Payload) []querycache.Matcher

// DefaultRules is the invalidation table for the workflow tracker's
// resources.
//
// Project events blanket-invalidate every "projects" key: list views,
// filtered views and the single-project view all go stale together.
// Child-resource events scope to the parent project's subtree so unrelated
// projects keep their cached data.
func DefaultRules() map[syncDomain.Kind]Rule {
	projectRule := func(p syncDomain.Payload) []querycache.Matcher {
		return []querycache.Matcher{querycache.Prefix("projects")}
	}
	childRule := func(p syncDomain.Payload) []querycache.Matcher {
		return []querycache.Matcher{querycache.Prefix("projects", p.ProjectID)}
	}
	npsRule := func(p syncDomain.Payload) []querycache.Matcher {
		return []querycache.Matcher{
			querycache.Prefix("projects", p.ProjectID),
			querycache.Prefix("nps"),
		}
	}

	return map[syncDomain.Kind]Rule{
		syncDomain.KindProjectCreated: projectRule,
		syncDomain.KindProjectUpdated: projectRule,
		syncDomain.KindProjectDeleted: projectRule,
		syncDomain.KindCommentCreated: childRule,
		syncDomain.KindCommentDeleted: childRule,
		syncDomain.KindNoteCreated:    childRule,
		syncDomain.KindNoteUpdated:    childRule,
		syncDomain.KindNoteDeleted:    childRule,
		syncDomain.KindNpsCreated:     npsRule,
	}
}

type Router struct {
	cache *querycache.Cache
	rules map[syncDomain.Kind]Rule
	queue chan syncDomain.Envelope
}

func New(cache *querycache.Cache, rules map[syncDomain.Kind]Rule) *Router {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Router{
		cache: cache,
		rules: rules,
		queue: make(chan syncDomain.Envelope, 1024),
	}
}

// Enqueue hands an envelope to the router queue, preserving arrival order.
// Blocks if the queue is full; the transport read loop is the only producer,
// so backpressure propagates to the socket instead of dropping work.
func (r *Router) Enqueue(env syncDomain.Envelope) {
	r.queue <- env
}

// Run drains the queue until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.queue:
			r.route(env)
		}
	}
}

func (r *Router) route(env syncDomain.Envelope) {
	event, err := syncDomain.Decode(env)
	if err != nil {
		logrus.Warnf("[Sync] Dropping event %q: %v", env.Event, err)
		return
	}

	rule, ok := r.rules[event.Kind]
	if !ok {
		logrus.Debugf("[Sync] No rule for event %s", event.Kind)
		return
	}

	for _, matcher := range rule(event.Payload) {
		r.cache.Invalidate(matcher)
	}
}
