package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances manually so window expiry is deterministic.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(clock *fakeClock, optFns ...func(o *Options)) *Limiter {
	fns := append([]func(o *Options){func(o *Options) { o.Now = clock.Now }}, optFns...)
	return New(fns...)
}

func TestPerMinuteLimit(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock)

	for i := 0; i < 6; i++ {
		require.NoError(t, l.Check("user-1"))
		l.Record("user-1")
	}

	err := l.Check("user-1")
	require.Error(t, err)
	var rlErr *Error
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, TierMinute, rlErr.Tier)
	assert.Equal(t, 10*time.Second, rlErr.RetryAfter)
	assert.NotEmpty(t, rlErr.Message)

	// Once the trailing window elapses the identity may call again.
	clock.Advance(61 * time.Second)
	assert.NoError(t, l.Check("user-1"))
}

func TestHourAndDayTiers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock, func(o *Options) {
		o.PerMinute = 1000 // keep the minute tier out of the way
		o.GlobalPerMinute = 100000
		o.PerHour = 3
		o.PerDay = 5
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check("u"))
		l.Record("u")
	}
	var rlErr *Error
	require.ErrorAs(t, l.Check("u"), &rlErr)
	assert.Equal(t, TierHour, rlErr.Tier)

	// Spread the remaining calls over separate hours to hit the day tier.
	clock.Advance(time.Hour + time.Minute)
	for i := 0; i < 2; i++ {
		require.NoError(t, l.Check("u"))
		l.Record("u")
	}
	require.ErrorAs(t, l.Check("u"), &rlErr)
	assert.Equal(t, TierDay, rlErr.Tier)
}

func TestGlobalTierAggregatesIdentities(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock, func(o *Options) {
		o.GlobalPerMinute = 4
	})

	// No single user exceeds their own per-minute limit.
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, l.Check(id))
		l.Record(id)
	}

	var rlErr *Error
	require.ErrorAs(t, l.Check("e"), &rlErr)
	assert.Equal(t, TierGlobalMinute, rlErr.Tier)

	clock.Advance(61 * time.Second)
	assert.NoError(t, l.Check("e"))
}

func TestAnonymousIdentityShareOneBucket(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock, func(o *Options) { o.PerMinute = 2 })

	l.Record("")
	l.Record("")
	var rlErr *Error
	require.ErrorAs(t, l.Check(""), &rlErr)
	assert.Equal(t, TierMinute, rlErr.Tier)
}

func TestUsageStats(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock)

	l.Record("u")
	clock.Advance(2 * time.Minute)
	l.Record("u")

	u := l.Usage("u")
	assert.Equal(t, 1, u.LastMinute)
	assert.Equal(t, 2, u.LastHour)
	assert.Equal(t, 2, u.LastDay)
}

func TestCheckKeepsOlderWindowHistory(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock)

	l.Record("u")
	clock.Advance(2 * time.Minute)
	l.Record("u")

	// Check inspects the minute tier first; that must not drop the older
	// stamp still counted by the hour and day windows.
	require.NoError(t, l.Check("u"))

	u := l.Usage("u")
	assert.Equal(t, 1, u.LastMinute)
	assert.Equal(t, 2, u.LastHour)
	assert.Equal(t, 2, u.LastDay)

	// Past the day window everything ages out and the identity is fresh.
	clock.Advance(25 * time.Hour)
	assert.Equal(t, Usage{}, l.Usage("u"))
	assert.NoError(t, l.Check("u"))
}

func TestIdleBucketCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock, func(o *Options) { o.CleanupEvery = 2 })

	l.Record("stale")
	clock.Advance(25 * time.Hour)
	l.Record("fresh")
	l.Record("fresh") // 2nd record since counter reset triggers cleanup

	l.mu.Lock()
	_, staleKept := l.buckets["stale"]
	_, freshKept := l.buckets["fresh"]
	l.mu.Unlock()
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}
