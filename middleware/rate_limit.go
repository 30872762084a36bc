package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// window tracks requests from one client in the current period
type window struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter allows maxRequests per client within each windowPeriod
type RateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*window
	maxRequests  int
	windowPeriod time.Duration
	now          func() time.Time
}

// NewRateLimiter creates a new rate limiter
// maxRequests: requests allowed per client within the window
// windowPeriod: length of the counting window
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		clients:      make(map[string]*window),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
		now:          time.Now,
	}
}

// Allow records a request from ip. When the client is over its limit it
// returns false and the time left until the window resets.
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanup(now)

	w, exists := rl.clients[ip]
	if !exists || now.Sub(w.FirstAt) >= rl.windowPeriod {
		rl.clients[ip] = &window{Count: 1, FirstAt: now}
		return true, rl.maxRequests - 1, 0
	}

	if w.Count >= rl.maxRequests {
		return false, 0, rl.windowPeriod - now.Sub(w.FirstAt)
	}
	w.Count++
	return true, rl.maxRequests - w.Count, 0
}

// cleanup removes expired windows; callers hold the lock
func (rl *RateLimiter) cleanup(now time.Time) {
	for ip, w := range rl.clients {
		if now.Sub(w.FirstAt) >= rl.windowPeriod {
			delete(rl.clients, ip)
		}
	}
}

// RateLimitMiddleware rejects clients that exceed the limiter with 429
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, retryAfter := rl.Allow(c.ClientIP())

		// Set headers for client awareness
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Too many requests. Please try again in %d second(s).", seconds),
			})
			return
		}

		c.Next()
	}
}
