package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mediashare/internal/metrics"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter allows each client IP a burst of requests per window, refilled evenly
// across the window.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

func NewRateLimiter(clk clock.Clock, requests int, window time.Duration) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	if requests <= 0 {
		requests = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{
		clock:    clk,
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		idle:     window,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	now := rl.clock.Now()

	rl.mu.Lock()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Sweep forgets clients idle for longer than a window; their bucket would be full again.
func (rl *RateLimiter) Sweep() int {
	threshold := rl.clock.Now().Add(-rl.idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, entry := range rl.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			metrics.RateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests from this IP, please try again later."})
			return
		}
		c.Next()
	}
}
