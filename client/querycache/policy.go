package querycache

import "time"

// Policy is the freshness policy for one class of keys.
type Policy struct {
	// MaxAge is how long a value stays Fresh absent any invalidation.
	MaxAge time.Duration
}

// DefaultMaxAge matches the documented default of five minutes.
const DefaultMaxAge = 5 * time.Minute

// PolicySet resolves a Policy per key-class. The class is the key's first
// segment ("projects", "nps", ...).
type PolicySet struct {
	Default Policy
	ByClass map[string]Policy
}

func (ps PolicySet) Resolve(key Key) Policy {
	if len(key) > 0 && ps.ByClass != nil {
		if p, ok := ps.ByClass[key[0]]; ok {
			return p
		}
	}
	if ps.Default.MaxAge <= 0 {
		return Policy{MaxAge: DefaultMaxAge}
	}
	return ps.Default
}
