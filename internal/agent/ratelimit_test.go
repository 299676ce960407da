package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, time.Minute)
	rl.Stop()
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.Allow("anon_a"))
	assert.True(t, rl.Allow("anon_a"))
	assert.False(t, rl.Allow("anon_a"))
	assert.True(t, rl.Allow("anon_b"), "keys are independent")

	clock = clock.Add(30 * time.Second)
	assert.False(t, rl.Allow("anon_a"))

	clock = clock.Add(31 * time.Second)
	assert.True(t, rl.Allow("anon_a"))
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(5, time.Minute)
	rl.Stop()
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }

	rl.Allow("anon_a")
	clock = clock.Add(10 * time.Second)
	rl.Allow("anon_b")

	clock = clock.Add(55 * time.Second)
	rl.evict()
	assert.NotContains(t, rl.requests, "anon_a")
	assert.Len(t, rl.requests["anon_b"], 1)
}

func TestRateLimiterDisabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, time.Minute)
	for range 100 {
		assert.True(t, rl.Allow("anon_a"))
	}
	rl.Stop()
	rl.Stop()
}
