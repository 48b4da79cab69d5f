package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbank/backend/internal/infrastructure/ratelimit"
)

// RateLimitConfig controls the per-client request budget.
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
	// KeyFunc derives the counter key for a request. Defaults to the
	// client IP.
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimitConfig allows 100 requests per minute per client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     true,
		MaxRequests: 100,
		Window:      time.Minute,
	}
}

// RateLimit returns a middleware enforcing a fixed-window request
// budget per client. When the shared store is unreachable the request
// is let through; availability wins over strict limiting.
func RateLimit(limiter *ratelimit.Limiter, cfg RateLimitConfig, l *zap.Logger) gin.HandlerFunc {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.Named("ratelimit")

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := keyFunc(c)
		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.MaxRequests, cfg.Window)
		if err != nil {
			l.Warn("rate limit check failed, letting request through",
				zap.String("key", key),
				zap.Error(err))
			c.Next()
			return
		}

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		if remaining, err := limiter.Remaining(c.Request.Context(), key, cfg.MaxRequests); err == nil {
			c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
