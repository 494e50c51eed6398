// Package ratelimit implements a small multi-window sliding-rate limiter,
// adapted from the teacher's own catrate package (see
// joeycumines-go-utilpkg/catrate): separate per-category sliding windows,
// each tracking discrete event timestamps rather than a token bucket.
//
// The upstream approval platform's write volume is dozens of events a
// minute (spec §1 Non-goals: "high write throughput"), so this trades
// catrate's ring-buffer-per-category optimization for a plain slice of
// timestamps per window: simpler, and fast enough at this scale.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces one or more sliding-window rates for a single category
// (the upstream client only ever throttles one thing: outbound calls to one
// corp's API), used by internal/wecom to pace requests independent of the
// per-item 45009 backoff handled by cenkalti/backoff.
type Limiter struct {
	mu     sync.Mutex
	rates  map[time.Duration]int
	events map[time.Duration][]time.Time
	now    func() time.Time // overridable for tests
}

// New constructs a Limiter. rates maps a sliding window duration to the
// maximum number of events permitted within it; multiple windows may be
// combined (e.g. 10/second and 2000/day).
func New(rates map[time.Duration]int) *Limiter {
	return &Limiter{
		rates:  rates,
		events: make(map[time.Duration][]time.Time, len(rates)),
		now:    time.Now,
	}
}

// Allow reports whether an event may be registered right now under every
// configured window, and if so, registers it. Non-blocking, matching the
// sync lock's non-blocking discipline (spec §5): callers that get false are
// expected to sleep and retry themselves, not block inside Allow.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for window, limit := range l.rates {
		l.prune(window, now)
		if len(l.events[window]) >= limit {
			return false
		}
	}
	for window := range l.rates {
		l.events[window] = append(l.events[window], now)
	}
	return true
}

// prune drops events older than window from the given window's slice.
// Caller holds l.mu.
func (l *Limiter) prune(window time.Duration, now time.Time) {
	events := l.events[window]
	cutoff := now.Add(-window)
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.events[window] = append([]time.Time(nil), events[i:]...)
	}
}
