// Package holiday provides a small in-memory cache in front of whatever
// public-holiday calendar source the deployment configures, so the
// engine's status snapshot can report whether today is a workday without
// hitting that source on every lookup.
package holiday

import (
	"context"
	"sync"
	"time"
)

// Source fetches the holiday set for a single calendar year. Implementations
// are free to call out to an external calendar API, read a bundled data
// file, or anything else; this package only owns caching and refresh
// timing, not the data itself.
type Source interface {
	// Holidays returns the set of holiday dates (truncated to local
	// midnight) observed in the given year.
	Holidays(ctx context.Context, year int) (map[time.Time]struct{}, error)
}

// Cache wraps a Source with a per-year cache, refreshed at most once per
// day (a holiday calendar changes rarely enough that daily refresh is
// already generous, and it keeps a misbehaving Source from being hammered
// on every lookup).
type Cache struct {
	source Source
	now    func() time.Time

	mu        sync.Mutex
	years     map[int]map[time.Time]struct{}
	fetchedAt map[int]time.Time
}

// NoHolidaysSource is the stub fetcher a deployment gets by default: the
// actual HTTP integration to a specific holiday calendar provider is out of
// scope (spec.md §1), so this reports no holidays at all rather than
// guessing at one provider's wire format.
type NoHolidaysSource struct{}

// Holidays always returns an empty set.
func (NoHolidaysSource) Holidays(context.Context, int) (map[time.Time]struct{}, error) {
	return map[time.Time]struct{}{}, nil
}

// New builds a Cache over source.
func New(source Source) *Cache {
	return &Cache{
		source:    source,
		now:       time.Now,
		years:     make(map[int]map[time.Time]struct{}),
		fetchedAt: make(map[int]time.Time),
	}
}

// IsHoliday reports whether day (any time within the day; only the date
// portion matters) is a holiday in its year, refreshing that year's cache
// entry if it is missing or more than 24h stale.
func (c *Cache) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	year := day.Year()
	key := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	c.mu.Lock()
	set, ok := c.years[year]
	stale := !ok || c.now().Sub(c.fetchedAt[year]) > 24*time.Hour
	c.mu.Unlock()

	if stale {
		fresh, err := c.source.Holidays(ctx, year)
		if err != nil {
			if ok {
				// Serve the stale cache rather than fail a lookup over a
				// transient upstream hiccup.
				_, isHoliday := set[key]
				return isHoliday, nil
			}
			return false, err
		}
		c.mu.Lock()
		c.years[year] = fresh
		c.fetchedAt[year] = c.now()
		set = fresh
		c.mu.Unlock()
	}

	_, isHoliday := set[key]
	return isHoliday, nil
}
