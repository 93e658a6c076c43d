package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(clock *fakeClock) *RateLimiter {
	rl := NewRateLimiter(5, time.Minute)
	rl.now = clock.Now
	return rl
}

func TestRateLimiter_SixthCallInWindowFails(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	rl := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.AssertAllowed("actorA"))
		clock.Advance(100 * time.Millisecond)
	}
	require.NoError(t, rl.AssertAllowed("actorB"), "other actors are independent")
	assert.ErrorIs(t, rl.AssertAllowed("actorA"), ErrRateLimitExceeded)

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, rl.AssertAllowed("actorA"), ErrRateLimitExceeded)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	rl := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.AssertAllowed("actorA"))
		clock.Advance(10 * time.Second)
	}
	// first hit was 50s ago
	require.ErrorIs(t, rl.AssertAllowed("actorA"), ErrRateLimitExceeded)

	clock.Advance(10 * time.Second)
	assert.NoError(t, rl.AssertAllowed("actorA"), "the oldest hit left the window")
	assert.ErrorIs(t, rl.AssertAllowed("actorA"), ErrRateLimitExceeded)
}

func TestRateLimiter_ConcurrentActors(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := map[string]int{}
	for _, actor := range []string{"a", "b", "c", "d"} {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(actor string) {
				defer wg.Done()
				if rl.AssertAllowed(actor) == nil {
					mu.Lock()
					allowed[actor]++
					mu.Unlock()
				}
			}(actor)
		}
	}
	wg.Wait()

	for _, actor := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 5, allowed[actor], actor)
	}
}

func trackedActors(rl *RateLimiter) []string {
	var keys []string
	rl.windows.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys
}

func TestRateLimiter_ForgetsIdleActors(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	rl := newTestLimiter(clock)

	for i := 0; i < 50; i++ {
		require.NoError(t, rl.AssertAllowed(fmt.Sprintf("actor-%d", i)))
	}
	assert.Len(t, trackedActors(rl), 50)

	clock.Advance(2 * time.Minute)
	require.NoError(t, rl.AssertAllowed("late"))
	assert.ElementsMatch(t, []string{"late"}, trackedActors(rl))

	// a swept actor starts over with a full budget
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.AssertAllowed("actor-0"))
	}
	assert.ErrorIs(t, rl.AssertAllowed("actor-0"), ErrRateLimitExceeded)
}

func TestRateLimiter_SweepKeepsActiveActors(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	rl := newTestLimiter(clock)

	require.NoError(t, rl.AssertAllowed("idle"))
	clock.Advance(50 * time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.AssertAllowed("busy"))
	}
	clock.Advance(20 * time.Second)

	// sweeps at t=70s: idle's only hit expired, busy's hits are 20s old
	assert.ErrorIs(t, rl.AssertAllowed("busy"), ErrRateLimitExceeded)
	assert.ElementsMatch(t, []string{"busy"}, trackedActors(rl))
}
