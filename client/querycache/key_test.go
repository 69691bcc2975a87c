package querycache

import (
	"testing"
	"time"
)

func TestPrefixMatcher(t *testing.T) {
	cases := []struct {
		name   string
		prefix []string
		key    Key
		want   bool
	}{
		{"root covers list", []string{"projects"}, NewKey("projects"), true},
		{"root covers detail", []string{"projects"}, NewKey("projects", "p1"), true},
		{"root covers subtree", []string{"projects"}, NewKey("projects", "p1", "comments"), true},
		{"scoped covers own subtree", []string{"projects", "p1"}, NewKey("projects", "p1", "notes"), true},
		{"scoped skips sibling", []string{"projects", "p1"}, NewKey("projects", "p2", "notes"), false},
		{"scoped skips parent list", []string{"projects", "p1"}, NewKey("projects"), false},
		{"different class", []string{"projects"}, NewKey("nps"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Prefix(tc.prefix...).Matches(tc.key); got != tc.want {
				t.Errorf("Prefix(%v).Matches(%v) = %v, want %v", tc.prefix, tc.key, got, tc.want)
			}
		})
	}
}

func TestExactMatcher(t *testing.T) {
	m := Exact("projects", "p1")
	if !m.Matches(NewKey("projects", "p1")) {
		t.Error("exact key should match")
	}
	if m.Matches(NewKey("projects", "p1", "comments")) {
		t.Error("longer key should not match")
	}
	if m.Matches(NewKey("projects")) {
		t.Error("shorter key should not match")
	}
}

func TestAllMatcher(t *testing.T) {
	for _, key := range []Key{NewKey("projects"), NewKey("nps"), NewKey("a", "b", "c")} {
		if !All().Matches(key) {
			t.Errorf("All() should match %v", key)
		}
	}
}

func TestPolicySetResolve(t *testing.T) {
	ps := PolicySet{
		Default: Policy{MaxAge: time.Minute},
		ByClass: map[string]Policy{
			"nps": {MaxAge: time.Hour},
		},
	}

	if got := ps.Resolve(NewKey("nps", "summary")).MaxAge; got != time.Hour {
		t.Errorf("class policy: MaxAge = %v, want 1h", got)
	}
	if got := ps.Resolve(NewKey("projects")).MaxAge; got != time.Minute {
		t.Errorf("default policy: MaxAge = %v, want 1m", got)
	}

	var zero PolicySet
	if got := zero.Resolve(NewKey("projects")).MaxAge; got != DefaultMaxAge {
		t.Errorf("zero policy set: MaxAge = %v, want %v", got, DefaultMaxAge)
	}
}
