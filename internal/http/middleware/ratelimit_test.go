package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	if key := KeyByUserOrIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("ip key = %q", key)
	}
	req.Header.Set("X-User-ID", "analyst-1")
	if key := KeyByUserOrIP()(c); key != "user:analyst-1" {
		t.Fatalf("header key = %q", key)
	}
	c.Set("userID", "u123")
	if key := KeyByUserOrIP()(c); key != "user:u123" {
		t.Fatalf("context key = %q", key)
	}
}

func TestNewRateLimiter_BurstCoercion_AndReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	now := time.Now()
	lim := rl.limiterFor("k1", now)
	if got := rl.limiterFor("k1", now); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
	if rl.Len() != 1 {
		t.Fatalf("Len = %d", rl.Len())
	}
}

func TestRateLimiter_SweepEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP())
	rl.sweepEvery = 2
	now := time.Now()

	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Hour)}
	rl.limiterFor("new", now) // lookups=1, no sweep
	if rl.Len() != 2 {
		t.Fatalf("Len before sweep = %d", rl.Len())
	}
	rl.limiterFor("new", now) // lookups=2, sweep
	if _, ok := rl.visitors["old"]; ok {
		t.Fatalf("expected idle visitor to be evicted")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Fatalf("expected active visitor to survive")
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if IsRateBypass(c) {
		t.Fatalf("expected false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected true when set")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("expected false for non-bool")
	}
}

func TestRateLimiter_Handler_Allow_Deny_Bypass_Exempt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP()).Exempt("/health")

	r := gin.New()
	r.Use(RequestID())
	r.Use(rl.Handler())
	r.POST("/query", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	post := func(user string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/query", nil)
		req.Header.Set("X-User-ID", user)
		r.ServeHTTP(w, req)
		return w
	}

	base := testutil.ToFloat64(httpRateLimited.WithLabelValues("/query"))
	if w := post("u1"); w.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w.Code)
	}
	w := post("u1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", w.Code)
	}
	if n, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || n < 1 {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] != w.Header().Get(requestIDHeader) {
		t.Fatalf("unexpected body: %v", body)
	}
	if got := testutil.ToFloat64(httpRateLimited.WithLabelValues("/query")); got != base+1 {
		t.Fatalf("rate limited counter = %v, want %v", got, base+1)
	}

	// Separate bucket per user.
	if w := post("u2"); w.Code != http.StatusOK {
		t.Fatalf("other user should pass, got %d", w.Code)
	}

	// Exempt route never consumes tokens.
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("health #%d = %d", i, w.Code)
		}
	}

	// Replays skip the limiter.
	rBypass := gin.New()
	rBypass.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	rBypass.Use(rl.Handler())
	rBypass.POST("/query", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("X-User-ID", "u1")
	rBypass.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bypass request should pass, got %d", w.Code)
	}
}
