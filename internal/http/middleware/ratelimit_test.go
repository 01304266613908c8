package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiter(rps, burst, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	r := newLimitedRouter(100, 3)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d -> %d; want 200", i, w.Code)
		}
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	// Tiny refill rate so the bucket does not replenish mid-test.
	r := newLimitedRouter(0.001, 1)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request -> %d; want 200", first.Code)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request -> %d; want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("429 response missing Retry-After")
	}
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	r := newLimitedRouter(0.001, 1)

	a := httptest.NewRecorder()
	reqA := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA.RemoteAddr = "10.0.0.3:1111"
	r.ServeHTTP(a, reqA)
	if a.Code != http.StatusOK {
		t.Fatalf("client A -> %d; want 200", a.Code)
	}

	// A different client has its own bucket.
	b := httptest.NewRecorder()
	reqB := httptest.NewRequest(http.MethodGet, "/", nil)
	reqB.RemoteAddr = "10.0.0.4:2222"
	r.ServeHTTP(b, reqB)
	if b.Code != http.StatusOK {
		t.Fatalf("client B -> %d; want 200", b.Code)
	}
}

func TestRateLimiter_SanitizesBadParams(t *testing.T) {
	// Zero/negative config falls back to safe minimums instead of panicking.
	r := newLimitedRouter(0, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:3333"
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("request -> %d; want 200", w.Code)
	}
}
