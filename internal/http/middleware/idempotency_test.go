package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay_Scope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) || GetIdempotencyScope(c) != "" {
		t.Fatalf("expected no replay and no scope by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("expected GetIdempotencyKey to be absent for non-string value")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}

	if got := idempotencyScope(c); got != "ip:203.0.113.7" {
		t.Fatalf("ip scope mismatch: %q", got)
	}
	req.Header.Set("X-User-ID", " analyst-1 ")
	if got := idempotencyScope(c); got != "user:analyst-1" {
		t.Fatalf("header scope mismatch: %q", got)
	}
	c.Set("userID", "u1")
	if got := idempotencyScope(c); got != "user:u1" {
		t.Fatalf("context scope mismatch: %q", got)
	}
}

func TestIdempotencyValidator_NoHeader_NoLookupCalled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookupCalled := false
	lookup := func(_ context.Context, _, _ string, _ time.Time) (*StoredResponse, error) {
		lookupCalled = true
		return nil, nil
	}
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.GET("/ping", func(c *gin.Context) {
		// header absent ⇒ no key stashed
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be present when header missing")
		}
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if lookupCalled {
		t.Fatalf("lookup should not be called when header missing")
	}
}

func TestIdempotencyValidator_InvalidKey_Length(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 5}, nil)) // very small
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "abcdef") // 6 > 5
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"] != "bad_idempotency_key" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestIdempotencyValidator_InvalidKey_Pattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// only digits allowed → alpha will fail
	r.Use(IdempotencyValidator(IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil))
	r.POST("/y", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/y", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc123") // invalid
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIdempotencyValidator_Valid_NoLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// MaxLen <= 0 triggers default 200, Pattern nil triggers default regex
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/z", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "abc-123" {
			t.Fatalf("expected stashed key abc-123, got %q ok=%v", key, ok)
		}
		if IsReplay(c) {
			t.Fatalf("expected IsReplay=false when lookup=nil")
		}
		if IsRateBypass(c) {
			t.Fatalf("expected IsRateBypass=false when lookup=nil")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/z", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc-123") // matches default pattern
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestIdempotencyValidator_MissSavesThenReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type saved struct {
		scope, key string
		status     int
		body       []byte
	}
	var store []saved
	calls := 0

	lookup := func(_ context.Context, scope, key string, now time.Time) (*StoredResponse, error) {
		if now.IsZero() {
			t.Fatalf("lookup time not populated")
		}
		for _, s := range store {
			if s.scope == scope && s.key == key {
				return &StoredResponse{Status: s.status, Body: s.body}, nil
			}
		}
		return nil, nil
	}
	save := func(_ context.Context, scope, key string, status int, body []byte) error {
		store = append(store, saved{scope, key, status, append([]byte(nil), body...)})
		return nil
	}

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Save: save}, lookup))
	r.POST("/query", func(c *gin.Context) {
		calls++
		if IsReplay(c) {
			t.Fatalf("handler must not run for a replay")
		}
		c.JSON(http.StatusOK, gin.H{"answer": calls})
	})

	send := func(user string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/query", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		req.Header.Set("X-User-ID", user)
		r.ServeHTTP(w, req)
		return w
	}

	first := send("u1")
	if first.Code != http.StatusOK || first.Header().Get(HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first: %d %v", first.Code, first.Header())
	}
	if len(store) != 1 || store[0].scope != "user:u1" || store[0].key != "k-1" {
		t.Fatalf("store = %+v", store)
	}

	second := send("u1")
	if second.Header().Get(HeaderIdempotencyReplayed) != "true" || second.Body.String() != first.Body.String() {
		t.Fatalf("second: replayed=%q body=%s", second.Header().Get(HeaderIdempotencyReplayed), second.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d", calls)
	}

	var body map[string]any
	other := send("u2")
	if err := json.Unmarshal(other.Body.Bytes(), &body); err != nil || body["answer"] != float64(2) {
		t.Fatalf("other scope should run the handler: %s", other.Body.String())
	}
}

func TestIdempotencyValidator_ErrorsAreNotSaved(t *testing.T) {
	gin.SetMode(gin.TestMode)
	saved := 0
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Save: func(context.Context, string, string, int, []byte) error {
		saved++
		return nil
	}}, nil))
	r.POST("/query", func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"code": "llm_unavailable"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway || saved != 0 {
		t.Fatalf("code=%d saved=%d", w.Code, saved)
	}
}

func TestIdempotencyValidator_RoutesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	looked := 0
	lookup := func(context.Context, string, string, time.Time) (*StoredResponse, error) {
		looked++
		return nil, nil
	}
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Routes: []string{"/api/v1/query"}}, lookup))
	r.POST("/api/v1/query", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/chat", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key must not be stashed outside the listed routes")
		}
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/query", "/api/v1/chat"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderIdempotencyKey, "k")
		r.ServeHTTP(w, req)
	}
	if looked != 1 {
		t.Fatalf("lookups = %d", looked)
	}
}
