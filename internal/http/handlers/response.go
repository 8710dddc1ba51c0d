// Package handlers provides HTTP handler implementations for the public API:
// question answering, chat, context and safety administration, the audit
// trail and health.
//
// Every error goes through fail() so clients always receive an ErrorResponse
// with a stable code.
//
//	HTTP/1.1 502 Bad Gateway
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "llm_unavailable",
//	  "message": "language model unavailable"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sql-assistant/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating client errors with server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code; see errors.go.
	Code string `json:"code" example:"blocked"`
	// Localized or generic text, safe to show to users.
	Message string `json:"message" example:"You are temporarily blocked."`
}

// fail aborts with an ErrorResponse. 5xx responses are logged at error level
// with the request-scoped logger; 4xx only at debug.
func fail(c *gin.Context, status int, code, msg string) {
	rid := middleware.RequestIDFrom(c)
	if rid == "" {
		rid = c.Writer.Header().Get("X-Request-ID")
	}

	lg := middleware.LoggerFrom(c)
	ev := lg.Debug()
	if status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")

	c.AbortWithStatusJSON(status, ErrorResponse{RequestID: rid, Code: code, Message: msg})
}

// Fail is fail for callers outside the package, such as the router's
// NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
