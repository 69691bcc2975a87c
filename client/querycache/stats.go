package querycache

import "github.com/dustin/go-humanize"

// Stats is a point-in-time summary of the cache, for diagnostics panels.
type Stats struct {
	Entries     int    `json:"entries"`
	Fresh       int    `json:"fresh"`
	Stale       int    `json:"stale"`
	Fetching    int    `json:"fetching"`
	Errored     int    `json:"errored"`
	Subscribed  int    `json:"subscribed"`
	OldestFetch string `json:"oldest_fetch,omitempty"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	s.Entries = len(c.entries)
	var oldest *entry
	for _, e := range c.entries {
		switch e.state {
		case StateFresh:
			s.Fresh++
		case StateStale:
			s.Stale++
		case StateFetching:
			s.Fetching++
		case StateError:
			s.Errored++
		}
		if len(e.subs) > 0 {
			s.Subscribed++
		}
		if e.hasValue && (oldest == nil || e.fetchedAt.Before(oldest.fetchedAt)) {
			oldest = e
		}
	}
	if oldest != nil {
		s.OldestFetch = humanize.Time(oldest.fetchedAt)
	}
	return s
}
