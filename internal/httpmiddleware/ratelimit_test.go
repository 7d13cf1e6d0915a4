package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(l *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.Handler())
	r.GET("/v1/students", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, path string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterExhaustsBurst(t *testing.T) {
	r := newLimitedRouter(NewRateLimiter(1, 3))

	for i := 0; i < 3; i++ {
		if code := get(r, "/v1/students"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := get(r, "/v1/students"); code != http.StatusTooManyRequests {
		t.Errorf("over-burst request: status = %d, want 429", code)
	}
}

func TestRateLimiterExemptPaths(t *testing.T) {
	r := newLimitedRouter(NewRateLimiter(1, 1, "/healthz"))

	if code := get(r, "/v1/students"); code != http.StatusOK {
		t.Fatalf("first request: status = %d", code)
	}
	// Budget exhausted, but the exempt path still answers.
	for i := 0; i < 5; i++ {
		if code := get(r, "/healthz"); code != http.StatusOK {
			t.Errorf("exempt request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := get(r, "/v1/students"); code != http.StatusTooManyRequests {
		t.Errorf("limited path after exhaustion: status = %d, want 429", code)
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(1, 1)
	if !l.allow("10.0.0.1") {
		t.Fatal("first client's first request denied")
	}
	if l.allow("10.0.0.1") {
		t.Error("first client not limited after burst")
	}
	if !l.allow("10.0.0.2") {
		t.Error("second client limited by first client's usage")
	}
}

func TestRateLimiterZeroBurstDefaultsToRate(t *testing.T) {
	l := NewRateLimiter(5, 0)
	for i := 0; i < 5; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d denied within default burst", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Error("request allowed past default burst")
	}
}
