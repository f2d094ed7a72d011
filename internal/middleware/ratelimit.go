package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Rate limit defaults: 60 requests per rolling fixed window of 60 seconds.
const (
	DefaultRateLimit  = 60
	DefaultRateWindow = 60 * time.Second
)

// anonymousKey buckets requests with no resolvable client IP. All such
// clients share one bucket; a known weakness of IP keying.
const anonymousKey = "anonymous"

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window request counter keyed by client IP.
// State is process-local and resets on restart, a single-instance
// approximation; multi-instance deployments need a shared counter store.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit. The count check and increment happen under one lock so
// concurrent requests cannot slip past the limit.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &rateWindow{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Sweep drops windows that have already expired, bounding map growth
// across many distinct client IPs.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// StartSweeper sweeps stale windows on the given interval until the
// returned stop function is called.
func (l *RateLimiter) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// Middleware rejects over-limit requests with 429 and a Retry-After
// header. Keyed by client IP, falling back to a shared anonymous bucket.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(l.window.Seconds()))
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = anonymousKey
		}
		if !l.Allow(key) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": gin.H{"code": "RATE_LIMITED", "message": "Too many requests, please try again later"}})
			return
		}
		c.Next()
	}
}
