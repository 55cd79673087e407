package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleIdleTTL = 10 * time.Minute

// Throttle is a per-key token bucket, used per client IP on the auth
// endpoints.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	clock    Clock
	buckets  map[string]*bucket
	lastSeen time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewThrottle allows perMinute requests per key with the given burst.
func NewThrottle(perMinute float64, burst int, clock Clock) *Throttle {
	if clock == nil {
		clock = realClock{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether a request for key may proceed now.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if now.Sub(t.lastSeen) > throttleIdleTTL {
		t.prune(now)
		t.lastSeen = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (t *Throttle) prune(now time.Time) {
	for key, b := range t.buckets {
		if now.Sub(b.seen) > throttleIdleTTL {
			delete(t.buckets, key)
		}
	}
}
