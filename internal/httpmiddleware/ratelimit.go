// Package httpmiddleware holds gin middleware shared by the API routes.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// staleAfter is how long an idle client keeps its bucket before eviction.
const staleAfter = 10 * time.Minute

// RateLimiter is an in-memory per-IP token bucket. Toggle taps from the
// teachers' tablets are bursty, so capacity is separate from the refill rate.
type RateLimiter struct {
	capacity int
	perMin   int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewRateLimiter creates a limiter with capacity tokens refilled at perMinute.
func NewRateLimiter(capacity, perMinute int) *RateLimiter {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &RateLimiter{
		capacity: capacity,
		perMin:   perMinute,
		buckets:  make(map[string]*bucket),
	}
}

// Middleware enforces the per-IP limit and answers 429 when exhausted.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// Allow consumes one token for key, refilling by elapsed time first.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) > 1024 {
			l.evict(now)
		}
		l.buckets[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}

	refill := int(now.Sub(b.last).Minutes() * float64(l.perMin))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// evict drops buckets idle long enough to be full again anyway. Caller holds mu.
func (l *RateLimiter) evict(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > staleAfter {
			delete(l.buckets, key)
		}
	}
}
