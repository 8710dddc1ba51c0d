// Package httpapi wires the HTTP transport (Gin) to the question-answering
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging/redaction, panic
// recovery, metrics, compression, CORS, security headers, idempotent replay
// of POST /query, and rate limiting.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-sql-assistant/internal/config"
	"github.com/tbourn/go-sql-assistant/internal/http/handlers"
	"github.com/tbourn/go-sql-assistant/internal/http/middleware"
	"github.com/tbourn/go-sql-assistant/internal/repo"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. db stores idempotency records; when nil, Idempotency-Key headers
// are validated but nothing is replayed.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip, CORS and security headers (so replays carry them too)
//  8. Idempotency replay for POST /query (before rate limiter to allow bypass)
//  9. Rate limiter (per user/IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps handlers.Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())

	// Questions are short; 1 MiB is generous.
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiBase := cfg.APIBasePath

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))
	useCORS(r, cfg.CORS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{
			joinPath(apiBase, "/query"),
			joinPath(apiBase, "/chat"),
			joinPath(apiBase, "/context"),
		},
		EnablePolicy: true,
	}))

	idem := middleware.IdempotencyOptions{
		MaxLen: 200,
		Routes: []string{joinPath(apiBase, "/query")},
	}
	var lookup middleware.IdempotencyLookup
	if db != nil {
		lookup = idempotencyLookup(db)
		idem.Save = idempotencySave(db, cfg.IdempotencyTTL)
	}
	r.Use(middleware.IdempotencyValidator(idem, lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt("/health", "/metrics")
	r.Use(rl.Handler())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps)
	r.GET("/health", h.Health)

	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/query", h.Query)
		api.POST("/context/clear", h.ClearContext)
		api.POST("/chat", h.Chat)
		api.GET("/audit", h.ListAudit)
		api.DELETE("/safety/:user_id", h.ClearWarnings)
	}
}

func useCORS(r *gin.Engine, cc config.CORSConfig) {
	methods := []string{"GET", "POST", "DELETE", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey}
	expose := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}

	if len(cc.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cc.AllowedOrigins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		ExposeHeaders:    expose,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// idempotencyLookup serves stored responses from the idempotency table.
// Not-found is a miss, not an error.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
		rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &middleware.StoredResponse{Status: rec.Status, Body: rec.Body}, nil
	}
}

// idempotencySave stores a response for ttl. A concurrent retry that already
// stored the same key wins; the duplicate is dropped silently.
func idempotencySave(db *gorm.DB, ttl time.Duration) middleware.IdempotencySave {
	return func(ctx context.Context, scope, key string, status int, body []byte) error {
		var ref struct {
			AuditID string `json:"audit_id"`
		}
		_ = json.Unmarshal(body, &ref)

		_, err := repo.CreateIdempotency(ctx, db, scope, key, ref.AuditID, status, body, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath returns the full route path gin reports for a route mounted under
// prefix.
func joinPath(prefix, route string) string {
	if prefix == "" || prefix == "/" {
		return route
	}
	return prefix + route
}
