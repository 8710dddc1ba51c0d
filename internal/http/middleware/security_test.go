package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// securityHeaders runs req through SecurityHeaders, with pre simulating
// headers set by earlier middleware.
func securityHeaders(t *testing.T, opt SecurityOptions, pre http.Header, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		for k, v := range pre {
			c.Writer.Header()[k] = v
		}
		c.Next()
	})
	r.Use(SecurityHeaders(opt))
	r.Any("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func getReq(path string) *http.Request { return httptest.NewRequest(http.MethodGet, path, nil) }

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := securityHeaders(t, SecurityOptions{}, nil, getReq("/api/v1/audit"))

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := h.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Errorf("unexpected %s = %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposeRequestID(t *testing.T) {
	cases := []struct {
		name    string
		current string
		want    string
	}{
		{"added", "", "X-Request-ID"},
		{"appended", "ETag", "ETag, X-Request-ID"},
		{"not duplicated", "X-Request-ID, ETag", "X-Request-ID, ETag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := http.Header{"X-Request-Id": {"rid-1"}}
			if tc.current != "" {
				pre.Set("Access-Control-Expose-Headers", tc.current)
			}
			h := securityHeaders(t, SecurityOptions{}, pre, getReq("/"))
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	h := securityHeaders(t, SecurityOptions{NoStore: true, EnablePolicy: true}, nil, getReq("/health"))
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" || h.Get("Permissions-Policy") == "" {
		t.Fatalf("policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers: %#v", h)
	}
}

func TestSecurityHeaders_NoStorePrefixes(t *testing.T) {
	opt := SecurityOptions{NoStorePrefixes: []string{"/api/v1/query", "", "/api/v1/chat"}}
	for path, want := range map[string]string{
		"/api/v1/query":         "no-store",
		"/api/v1/chat":          "no-store",
		"/api/v1/context/clear": "",
		"/api/v1/audit":         "",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if got := securityHeaders(t, opt, nil, req).Get("Cache-Control"); got != want {
			t.Errorf("%s Cache-Control = %q, want %q", path, got, want)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tlsReq := getReq("/")
	tlsReq.TLS = &tls.ConnectionState{}
	proxied := getReq("/")
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")

	cases := []struct {
		name string
		opt  SecurityOptions
		req  *http.Request
		want string
	}{
		{"tls", SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}, tlsReq, "max-age=86400; includeSubDomains; preload"},
		{"proxy", SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, proxied, "max-age=3600; includeSubDomains; preload"},
		{"default age", SecurityOptions{EnableHSTS: true}, tlsReq, "max-age=" + strconv.Itoa(180*24*3600) + "; includeSubDomains; preload"},
		{"plain http", SecurityOptions{EnableHSTS: true}, getReq("/"), ""},
		{"disabled", SecurityOptions{}, tlsReq, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := securityHeaders(t, tc.opt, nil, tc.req).Get("Strict-Transport-Security"); got != tc.want {
				t.Fatalf("HSTS = %q, want %q", got, tc.want)
			}
		})
	}
}
