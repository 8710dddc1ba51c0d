package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by caller: "user:<id>" from the auth context or
// X-User-ID header, else "ip:<addr>". Every question costs a model call, so
// limits follow the user that asked rather than the connection.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := callerUserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-key token bucket. Idle buckets are
// evicted after ttl during a sweep that runs every sweepEvery lookups.
// Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	exempt map[string]bool

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  int

	ttl        time.Duration
	sweepEvery int
}

// NewRateLimiter allows rps requests per second per key with the given burst.
// burst <= 0 becomes 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		keyFn:      keyFn,
		visitors:   make(map[string]*visitor),
		ttl:        10 * time.Minute,
		sweepEvery: 5000,
	}
}

// Exempt skips limiting for the given route paths (gin FullPath, or the raw
// path when no route matched). It returns rl for chaining.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	if rl.exempt == nil {
		rl.exempt = make(map[string]bool, len(paths))
	}
	for _, p := range paths {
		rl.exempt[p] = true
	}
	return rl
}

// limiterFor returns the bucket for key. The sweep runs before the lookup so
// a stale bucket is evicted even when it is the one requested.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Len reports how many buckets are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// IsRateBypass reports whether IdempotencyValidator served a replay for this
// request; replays do not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limits. A rejected request gets 429 with Retry-After
// (whole seconds until the next token, at least 1) and the handlers' error
// envelope with code "too_many_requests".
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if rl.exempt[path] {
			c.Next()
			return
		}

		now := time.Now()
		lim := rl.limiterFor(rl.keyFn(c), now)
		r := lim.ReserveN(now, 1)
		if r.OK() && r.DelayFrom(now) == 0 {
			c.Next()
			return
		}
		retry := 1
		if r.OK() {
			if d := r.DelayFrom(now); d > time.Second {
				retry = int((d + time.Second - 1) / time.Second)
			}
			r.CancelAt(now)
		}

		httpRateLimited.WithLabelValues(path).Inc()
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
