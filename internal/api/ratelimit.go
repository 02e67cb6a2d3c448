package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/finsphere/finsphere/internal/audit"
)

// Rate limiter defaults, used when the configured values are unset
const (
	DefaultRateLimit = 20.0
	DefaultRateBurst = 40
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	entries sync.Map // map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	audit   AuditLog
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with the
// given burst per client. Rejections are written to auditLog when set.
func NewRateLimiter(perSecond float64, burst int, auditLog AuditLog) *RateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultRateLimit
	}
	if burst < 1 {
		burst = DefaultRateBurst
	}
	return &RateLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		audit: auditLog,
		now:   time.Now,
	}
}

// Allow reports whether a request from key may proceed now
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	val, ok := rl.entries.Load(key)
	if !ok {
		val, _ = rl.entries.LoadOrStore(key, &limiterEntry{
			limiter: rate.NewLimiter(rl.limit, rl.burst),
		})
	}
	entry := val.(*limiterEntry)
	entry.lastSeen.Store(now.UnixNano())

	return entry.limiter.AllowN(now, 1)
}

// Cleanup removes clients idle for longer than maxIdle and returns how many
// were removed
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	cutoff := rl.now().Add(-maxIdle).UnixNano()
	removed := 0
	rl.entries.Range(func(key, value any) bool {
		if value.(*limiterEntry).lastSeen.Load() < cutoff {
			rl.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Middleware returns a Gin middleware that applies rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rl.Allow(ip) {
			c.Next()
			return
		}

		log.Warn().
			Str("ip", ip).
			Str("path", c.FullPath()).
			Float64("limit", float64(rl.limit)).
			Int("burst", rl.burst).
			Msg("Rate limit exceeded")

		if rl.audit != nil {
			_ = rl.audit.LogSecurityEvent(c.Request.Context(), audit.EventTypeRateLimitExceeded,
				c.Param("user_id"), ip, c.FullPath(), "Rate limit exceeded",
				map[string]any{"limit": float64(rl.limit), "burst": rl.burst})
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
		})
	}
}
