package service

import (
	"sync"
	"time"

	"astba/training-app/internal/metrics"
)

// RateLimiter enforces a sliding window of at most max requests per actor. Each actor
// has its own lock, so unrelated actors never contend. Actors with no hit left in the
// window are swept at most once per window.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	windows sync.Map // actor key -> *actorWindow

	sweepMu   sync.Mutex
	nextSweep time.Time
}

type actorWindow struct {
	mu      sync.Mutex
	hits    []time.Time // ascending
	removed bool        // set once the sweep dropped this entry from the map
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{max: max, window: window, now: time.Now}
}

// AssertAllowed records a request for actorKey, or returns ErrRateLimitExceeded when
// the actor already made max requests within the trailing window. Rejected requests
// are not recorded.
func (r *RateLimiter) AssertAllowed(actorKey string) error {
	now := r.now()
	err := r.record(actorKey, now)
	r.maybeSweep(now)
	return err
}

func (r *RateLimiter) record(actorKey string, now time.Time) error {
	for {
		v, _ := r.windows.LoadOrStore(actorKey, &actorWindow{})
		w := v.(*actorWindow)

		w.mu.Lock()
		if w.removed {
			// lost a race with the sweep; retry on a fresh entry
			w.mu.Unlock()
			continue
		}
		w.evict(now.Add(-r.window))
		if len(w.hits) >= r.max {
			w.mu.Unlock()
			metrics.RateLimited.Inc()
			return ErrRateLimitExceeded
		}
		w.hits = append(w.hits, now)
		w.mu.Unlock()
		return nil
	}
}

func (w *actorWindow) evict(cutoff time.Time) {
	drop := 0
	for drop < len(w.hits) && !w.hits[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.hits = append(w.hits[:0], w.hits[drop:]...)
	}
}

// maybeSweep removes actors whose whole window has expired. Concurrent callers skip
// the sweep instead of waiting for it.
func (r *RateLimiter) maybeSweep(now time.Time) {
	if !r.sweepMu.TryLock() {
		return
	}
	defer r.sweepMu.Unlock()
	if now.Before(r.nextSweep) {
		return
	}
	r.nextSweep = now.Add(r.window)

	cutoff := now.Add(-r.window)
	r.windows.Range(func(key, v any) bool {
		w := v.(*actorWindow)
		w.mu.Lock()
		w.evict(cutoff)
		if len(w.hits) == 0 {
			w.removed = true
			r.windows.CompareAndDelete(key, w)
		}
		w.mu.Unlock()
		return true
	})
}
