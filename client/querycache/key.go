package querycache

import "strings"

// Key addresses one cached query result: an ordered sequence of segments,
// e.g. ["projects"], ["projects", id], ["projects", id, "comments"].
type Key []string

func NewKey(segments ...string) Key {
	return Key(segments)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

func (k Key) Clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// Matcher selects cache keys for invalidation.
type Matcher interface {
	Matches(key Key) bool
}

// MatcherFunc adapts a plain function to a Matcher.
type MatcherFunc func(key Key) bool

func (f MatcherFunc) Matches(key Key) bool { return f(key) }

type prefixMatcher []string

func (m prefixMatcher) Matches(key Key) bool {
	if len(key) < len(m) {
		return false
	}
	for i, seg := range m {
		if key[i] != seg {
			return false
		}
	}
	return true
}

// Prefix matches every key whose leading segments equal the given ones.
// Prefix("projects") covers the list view, every filtered view and every
// single-project view at once; over-invalidating is safe,
// under-invalidating causes stale UI.
func Prefix(segments ...string) Matcher {
	return prefixMatcher(segments)
}

type exactMatcher []string

func (m exactMatcher) Matches(key Key) bool {
	if len(key) != len(m) {
		return false
	}
	for i, seg := range m {
		if key[i] != seg {
			return false
		}
	}
	return true
}

// Exact matches one key only.
func Exact(segments ...string) Matcher {
	return exactMatcher(segments)
}

// All matches every key. Used by reconnect reconciliation.
func All() Matcher {
	return MatcherFunc(func(Key) bool { return true })
}
