// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for unsafe HTTP methods (POST
// /query in particular). It validates an Idempotency-Key request header,
// looks up a previously stored response for (scope, key) and replays it
// verbatim, or captures the response of a fresh request and hands it to a
// save function so a retry can be replayed later.
//
// The scope is the caller identity: the authenticated user id when upstream
// middleware set one, otherwise the X-User-ID header, otherwise the client
// IP. Keys are unique per scope, so two users may reuse the same key.
//
// Persistence is decoupled through the IdempotencyLookup and IdempotencySave
// function types; TTL enforcement lives behind them.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the canonical request header that clients use to
// convey an idempotency key for unsafe operations (e.g., POST).
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set to "true" on replayed responses.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemScope  = "idem.scope"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay was served
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// GetIdempotencyScope returns the scope the key was checked under.
func GetIdempotencyScope(c *gin.Context) string {
	v, _ := c.Get(ctxKeyIdemScope)
	s, _ := v.(string)
	return s
}

// IsReplay reports whether the middleware served a stored response for this
// request.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// StoredResponse is a response recorded for an idempotency key.
type StoredResponse struct {
	Status int
	Body   []byte
}

// IdempotencyLookup returns the stored response for (scope, key) when one
// exists and has not expired, or nil. Errors are logged by the caller and
// never block normal processing.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (*StoredResponse, error)

// IdempotencySave records a successful response for (scope, key).
type IdempotencySave func(ctx context.Context, scope, key string, status int, body []byte) error

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative RFC7230-like
	// token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
	// Save, when set, records 2xx JSON responses of requests carrying a key.
	Save IdempotencySave
	// Routes limits the middleware to these gin FullPath values; empty means
	// every route.
	Routes []string
}

// IdempotencyValidator validates the Idempotency-Key header (if present) and
// stashes it with its scope in the request context.
//
// Behavior:
//   - If header is absent: the middleware is a no-op.
//   - If header fails validation: responds 400 with a compact error body.
//   - If lookup finds a stored response: replays it with
//     Idempotency-Replayed: true and aborts the chain.
//   - Otherwise the request proceeds; a 2xx response is passed to Save.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	var routes map[string]bool
	if len(opts.Routes) > 0 {
		routes = make(map[string]bool, len(opts.Routes))
		for _, r := range opts.Routes {
			routes[r] = true
		}
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || (routes != nil && !routes[c.FullPath()]) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		scope := idempotencyScope(c)
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil {
			prev, err := lookup(c.Request.Context(), scope, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if prev != nil {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
				c.Header(HeaderIdempotencyReplayed, "true")
				c.Data(prev.Status, "application/json; charset=utf-8", prev.Body)
				c.Abort()
				return
			}
		}

		if opts.Save == nil {
			c.Next()
			return
		}

		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Next()

		status := cw.Status()
		if status >= 200 && status < 300 && cw.buf.Len() > 0 {
			if err := opts.Save(c.Request.Context(), scope, key, status, cw.buf.Bytes()); err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency save failed")
			}
		}
	}
}

// idempotencyScope identifies the caller: the user id set by upstream
// middleware, then the X-User-ID header, then the client IP.
func idempotencyScope(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return "user:" + s
		}
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return "user:" + h
		}
	}
	return "ip:" + c.ClientIP()
}

// captureWriter copies the response body while writing it through.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
