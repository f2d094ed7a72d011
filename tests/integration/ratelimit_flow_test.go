package integration

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"valuemetrix/internal/middleware"
)

// requestFrom makes a request with a spoofed client IP.
func (app *testApp) requestFrom(ip, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitEnforced(t *testing.T) {
	app := setupApp(t)

	for i := 0; i < middleware.DefaultRateLimit; i++ {
		rec := app.requestFrom("203.0.113.7", "GET", "/api/v1/share/whatever-token")
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d was limited too early", i+1)
		}
	}

	rec := app.requestFrom("203.0.113.7", "GET", "/api/v1/share/whatever-token")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected request %d to be limited, got %d", middleware.DefaultRateLimit+1, rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	result := parseJSON(t, rec)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %v", errObj["code"])
	}
}

func TestRateLimitPerClient(t *testing.T) {
	app := setupApp(t)

	// Exhaust one client's window.
	for i := 0; i <= middleware.DefaultRateLimit; i++ {
		app.requestFrom("203.0.113.8", "GET", "/api/v1/share/whatever-token")
	}

	// A different client is unaffected.
	rec := app.requestFrom("203.0.113.9", "GET", "/api/v1/share/whatever-token")
	if rec.Code == http.StatusTooManyRequests {
		t.Fatal("expected a fresh client to pass")
	}
}

func TestHealthBypassesRateLimit(t *testing.T) {
	app := setupApp(t)

	for i := 0; i <= middleware.DefaultRateLimit; i++ {
		app.requestFrom("203.0.113.10", "GET", "/api/v1/share/whatever-token")
	}

	rec := app.requestFrom("203.0.113.10", "GET", "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health to bypass the limiter, got %d", rec.Code)
	}
}
