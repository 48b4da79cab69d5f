package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/finbank/backend/internal/infrastructure/ratelimit"
	"github.com/finbank/backend/internal/interfaces/http/middleware"
)

func newRateLimitRig(store cache.Store, cfg middleware.RateLimitConfig) *gin.Engine {
	limiter := ratelimit.NewLimiter(store, nil)
	router := gin.New()
	router.Use(middleware.RateLimit(limiter, cfg, nil))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func hit(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:4567"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BlocksAboveBudget(t *testing.T) {
	clk := clock.NewFake(time.Now())
	router := newRateLimitRig(cache.NewMemoryStore(clk), middleware.RateLimitConfig{
		Enabled:     true,
		MaxRequests: 2,
		Window:      time.Minute,
	})

	assert.Equal(t, http.StatusOK, hit(router).Code)
	assert.Equal(t, http.StatusOK, hit(router).Code)

	w := hit(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_WindowResets(t *testing.T) {
	clk := clock.NewFake(time.Now())
	router := newRateLimitRig(cache.NewMemoryStore(clk), middleware.RateLimitConfig{
		Enabled:     true,
		MaxRequests: 1,
		Window:      time.Minute,
	})

	assert.Equal(t, http.StatusOK, hit(router).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(router).Code)

	clk.Advance(61 * time.Second)
	assert.Equal(t, http.StatusOK, hit(router).Code)
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	clk := clock.NewFake(time.Now())
	router := newRateLimitRig(cache.NewMemoryStore(clk), middleware.RateLimitConfig{
		Enabled:     false,
		MaxRequests: 0,
		Window:      time.Minute,
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(router).Code)
	}
}

// brokenStore fails every operation, standing in for an unreachable
// shared cache.
type brokenStore struct{ cache.Store }

func (brokenStore) Increment(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("store down")
}

func TestRateLimit_FailsOpenOnStoreError(t *testing.T) {
	router := newRateLimitRig(brokenStore{}, middleware.RateLimitConfig{
		Enabled:     true,
		MaxRequests: 1,
		Window:      time.Minute,
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(router).Code, "limiter errors must not reject traffic")
	}
}
