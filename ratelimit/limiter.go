// Package ratelimit implements the multi-tier sliding-window limiter that
// gates every model invocation. Counts are tracked per identity plus one
// global pseudo-identity, over trailing minute/hour/day windows. In-memory
// buckets make it suitable for single-instance deployments; multi-instance
// setups should swap in a shared store behind the same contract.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/travelmesh/logging"
)

// Tier names the rate-limit window that rejected a call.
type Tier string

const (
	TierMinute       Tier = "minute"
	TierHour         Tier = "hour"
	TierDay          Tier = "day"
	TierGlobalMinute Tier = "global_minute"
)

const (
	windowMinute = time.Minute
	windowHour   = time.Hour
	windowDay    = 24 * time.Hour

	// anonymousKey buckets calls that arrive without a user identity.
	anonymousKey = "__anonymous__"
)

// Error is the typed rejection raised when any tier is exceeded. It carries a
// user-facing message and a retry-after hint; the engine never retries it.
type Error struct {
	Tier       Tier
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string { return e.Message }

// Options configures a Limiter.
type Options struct {
	PerMinute       int
	PerHour         int
	PerDay          int
	GlobalPerMinute int
	// CleanupEvery triggers garbage collection of idle buckets after every
	// Nth recorded call.
	CleanupEvery int
	// Now overrides the clock, for tests.
	Now    func() time.Time
	Logger logging.Logger
}

// bucket tracks call timestamps for one identity. Each bucket carries its own
// mutex so unrelated identities never block each other.
type bucket struct {
	mu     sync.Mutex
	stamps []time.Time
}

// prune drops stamps that have aged out of the longest window. Shorter
// windows must never prune, or the hour and day tiers would be capped at the
// minute count. Caller must hold b.mu.
func (b *bucket) prune(now time.Time) {
	cutoff := now.Add(-windowDay)
	kept := b.stamps[:0]
	for _, ts := range b.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.stamps = kept
}

// countInWindow returns the number of stamps inside the trailing window
// without mutating the bucket. Caller must hold b.mu.
func (b *bucket) countInWindow(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	var n int
	for _, ts := range b.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// Limiter is the multi-tier sliding-window rate limiter. The zero value is
// not usable; construct with New. Check and Record are safe for concurrent
// use across identities.
type Limiter struct {
	opts Options

	mu       sync.Mutex // guards buckets map and cleanup counter, never held across tier checks
	buckets  map[string]*bucket
	global   bucket
	recorded int
}

// New constructs a Limiter with the default tiers (6/min, 60/h, 500/day per
// identity, 30/min globally) unless overridden.
func New(optFns ...func(o *Options)) *Limiter {
	opts := Options{
		PerMinute:       6,
		PerHour:         60,
		PerDay:          500,
		GlobalPerMinute: 30,
		CleanupEvery:    100,
		Now:             time.Now,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Limiter{opts: opts, buckets: make(map[string]*bucket)}
}

func key(identity string) string {
	if identity == "" {
		return anonymousKey
	}
	return identity
}

func (l *Limiter) bucketFor(identity string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key(identity)]
	if !ok {
		b = &bucket{}
		l.buckets[key(identity)] = b
	}
	return b
}

// Check verifies the identity is within all tiers. The first violated tier
// (minute, hour, day, then global minute) determines the rejection. A nil
// return means the caller may proceed; it must call Record once the
// downstream call actually succeeds.
func (l *Limiter) Check(identity string) error {
	now := l.opts.Now()
	b := l.bucketFor(identity)

	b.mu.Lock()
	b.prune(now)
	switch {
	case b.countInWindow(now, windowMinute) >= l.opts.PerMinute:
		b.mu.Unlock()
		return &Error{
			Tier:       TierMinute,
			RetryAfter: 10 * time.Second,
			Message: fmt.Sprintf(
				"Bạn đã gửi quá %d tin nhắn trong 1 phút. Vui lòng đợi 10 giây rồi thử lại. ⏳",
				l.opts.PerMinute),
		}
	case b.countInWindow(now, windowHour) >= l.opts.PerHour:
		b.mu.Unlock()
		return &Error{
			Tier:       TierHour,
			RetryAfter: time.Minute,
			Message: fmt.Sprintf(
				"Bạn đã đạt giới hạn %d tin nhắn/giờ. Vui lòng quay lại sau. ⏳",
				l.opts.PerHour),
		}
	case b.countInWindow(now, windowDay) >= l.opts.PerDay:
		b.mu.Unlock()
		return &Error{
			Tier:       TierDay,
			RetryAfter: 5 * time.Minute,
			Message: fmt.Sprintf(
				"Bạn đã đạt giới hạn %d tin nhắn/ngày. Giới hạn sẽ được reset vào ngày mai. ⏳",
				l.opts.PerDay),
		}
	}
	b.mu.Unlock()

	l.global.mu.Lock()
	defer l.global.mu.Unlock()
	l.global.prune(now)
	if l.global.countInWindow(now, windowMinute) >= l.opts.GlobalPerMinute {
		return &Error{
			Tier:       TierGlobalMinute,
			RetryAfter: 10 * time.Second,
			Message:    "Hệ thống đang quá tải. Vui lòng thử lại sau vài giây. 🔄",
		}
	}
	return nil
}

// Record notes one successful downstream call for the identity and the global
// bucket. It must only be called after the call actually succeeded.
func (l *Limiter) Record(identity string) {
	now := l.opts.Now()

	b := l.bucketFor(identity)
	b.mu.Lock()
	b.stamps = append(b.stamps, now)
	b.mu.Unlock()

	l.global.mu.Lock()
	l.global.stamps = append(l.global.stamps, now)
	l.global.mu.Unlock()

	l.mu.Lock()
	l.recorded++
	cleanup := l.opts.CleanupEvery > 0 && l.recorded >= l.opts.CleanupEvery
	if cleanup {
		l.recorded = 0
	}
	l.mu.Unlock()

	if cleanup {
		l.cleanupIdleBuckets(now)
	}
}

// Usage reports the identity's current counts per window, for diagnostics.
type Usage struct {
	LastMinute int `json:"requests_last_minute"`
	LastHour   int `json:"requests_last_hour"`
	LastDay    int `json:"requests_last_day"`
}

// Usage returns the identity's rolling call counts.
func (l *Limiter) Usage(identity string) Usage {
	now := l.opts.Now()
	b := l.bucketFor(identity)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	return Usage{
		LastMinute: b.countInWindow(now, windowMinute),
		LastHour:   b.countInWindow(now, windowHour),
		LastDay:    b.countInWindow(now, windowDay),
	}
}

// cleanupIdleBuckets drops buckets with no activity in the longest window to
// bound memory over long uptimes.
func (l *Limiter) cleanupIdleBuckets(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var dropped int
	for k, b := range l.buckets {
		b.mu.Lock()
		b.prune(now)
		idle := len(b.stamps) == 0
		b.mu.Unlock()
		if idle {
			delete(l.buckets, k)
			dropped++
		}
	}
	if dropped > 0 {
		l.opts.Logger.Debug("ratelimit.cleanup", "dropped_buckets", dropped)
	}
}
