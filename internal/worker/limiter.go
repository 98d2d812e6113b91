package worker

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const defaultMaxLimiters = 10000

// Limiter implements per-key rate limiting.
// Keys are participant IDs or client IPs; the least recently seen keys are
// evicted once maxLimiters is reached.
type Limiter struct {
	limiters     *lru.Cache[string, *rate.Limiter]
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int, maxLimiters int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	if maxLimiters <= 0 {
		maxLimiters = defaultMaxLimiters
	}

	// lru.New only fails for a non-positive size
	limiters, _ := lru.New[string, *rate.Limiter](maxLimiters)

	return &Limiter{
		limiters:     limiters,
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// NewLimiterPerMinute creates a limiter from a per-minute budget
func NewLimiterPerMinute(requestsPerMinute float64, burst int, maxLimiters int) *Limiter {
	return NewLimiter(requestsPerMinute/60, burst, maxLimiters)
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	return l.limiters.Len()
}

// getLimiter returns the rate limiter for a key
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Get(key); ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the lock
	if limiter, ok := l.limiters.Get(key); ok {
		return limiter
	}

	limiter := rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters.Add(key, limiter)

	return limiter
}
