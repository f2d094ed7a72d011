package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// fakeClock lets tests move through rate-limit windows instantly.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllow_ExactlyLimitWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(60, time.Minute)

	for i := 1; i <= 60; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("61st request within the window should be rejected")
	}
}

func TestAllow_WindowReset(t *testing.T) {
	l, clock := newTestLimiter(60, time.Minute)

	for i := 0; i < 60; i++ {
		l.Allow("1.2.3.4")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("expected rejection before window reset")
	}

	clock.advance(61 * time.Second)
	if !l.Allow("1.2.3.4") {
		t.Fatal("expected allowance after window elapsed")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Allow("1.1.1.1") {
		t.Fatal("first key should be allowed")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatal("second key has its own window")
	}
	if l.Allow("1.1.1.1") {
		t.Fatal("first key should now be over limit")
	}
}

func TestSweep_DropsExpiredWindows(t *testing.T) {
	l, clock := newTestLimiter(60, time.Minute)

	l.Allow("1.1.1.1")
	l.Allow("2.2.2.2")
	clock.advance(2 * time.Minute)
	l.Allow("3.3.3.3")

	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.windows) != 1 {
		t.Errorf("expected 1 live window after sweep, got %d", len(l.windows))
	}
	if _, ok := l.windows["3.3.3.3"]; !ok {
		t.Error("live window should survive the sweep")
	}
}

func TestMiddleware_Returns429WithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newTestLimiter(2, time.Minute)

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/ping", nil)
		req.Header.Set("X-Forwarded-For", "1.2.3.4")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After: 60, got %q", got)
	}
}
