package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// bucket is one credential's token-bucket state.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// InMemoryLimiter is a process-wide rate-limit bookkeeping map keyed by
// credential, guarded by a mutex, with stale-entry eviction folded into the
// same critical section as the lookup. Used when no Redis URL is
// configured; RedisLuaLimiter takes over for the horizontal-scaling case.
type InMemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  BucketConfig
	idle    time.Duration
}

// NewInMemoryLimiter constructs a limiter with a single shared bucket
// configuration. idle bounds how long an unused entry survives before
// eviction; idle <= 0 disables eviction.
func NewInMemoryLimiter(cfg BucketConfig, idle time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		idle:    idle,
	}
}

var _ Limiter = (*InMemoryLimiter)(nil)

// Allow consumes cost tokens from key's bucket, refilling by elapsed time
// since the last call. Stale entries are evicted opportunistically within
// the same critical section as the lookup.
func (l *InMemoryLimiter) Allow(_ context.Context, key string, cost int64) (bool, time.Duration, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.idle > 0 {
		for k, b := range l.buckets {
			if k != key && now.Sub(b.lastSeen) > l.idle {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.config.Capacity), lastRefill: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.config.RefillRate
		if cap := float64(l.config.Capacity); b.tokens > cap {
			b.tokens = cap
		}
		b.lastRefill = now
	}
	b.lastSeen = now

	need := float64(cost)
	if b.tokens >= need {
		b.tokens -= need
		return true, 0, nil
	}

	deficit := need - b.tokens
	var retryAfter time.Duration
	if l.config.RefillRate > 0 {
		retryAfter = time.Duration(deficit/l.config.RefillRate*1000) * time.Millisecond
	}
	return false, retryAfter, nil
}
