package internal

import (
	"sync"
	"time"
)

// RateLimiter is a per-key token bucket refilled once per interval.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	burst    int
	interval time.Duration
	now      func() time.Time
}

type visitor struct {
	tokens      int
	lastUpdated time.Time
}

// NewRateLimiter allows rate requests per minute with the given burst.
func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		burst:    burst,
		interval: time.Minute,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{tokens: rl.burst, lastUpdated: now}
		rl.visitors[key] = v
	}

	if refill := int(now.Sub(v.lastUpdated) / rl.interval); refill > 0 {
		v.tokens = min(v.tokens+refill*rl.rate, rl.burst)
		v.lastUpdated = now
	}

	if v.tokens > 0 {
		v.tokens--
		return true
	}
	return false
}

// Prune drops visitors idle for longer than maxIdle.
func (rl *RateLimiter) Prune(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	for k, v := range rl.visitors {
		if v.lastUpdated.Before(cutoff) {
			delete(rl.visitors, k)
		}
	}
}
