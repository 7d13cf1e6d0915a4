// Package httpmiddleware holds gin middleware shared by the API server.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is an in-memory per-client token bucket. Operational
// endpoints (health, metrics) can be exempted so probes and scrapes
// never count against a client's budget.
type RateLimiter struct {
	burst  int
	perMin int
	exempt map[string]bool

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// Buckets idle longer than this are dropped on the next sweep.
const staleAfter = 10 * time.Minute

// NewRateLimiter creates a limiter refilling perMinute tokens up to
// burst, with the given request paths exempted entirely.
func NewRateLimiter(perMinute, burst int, exemptPaths ...string) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}
	return &RateLimiter{
		burst:     burst,
		perMin:    perMinute,
		exempt:    exempt,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// Handler returns the gin middleware enforcing the limit per client IP.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.exempt[c.Request.URL.Path] {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > staleAfter {
		for k, b := range l.buckets {
			if now.Sub(b.last) > staleAfter {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.perMin))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
