package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbank/backend/internal/infrastructure/auth"
	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/finbank/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// capture records the identity headers as seen by the handler behind
// the filter, i.e. what a downstream service would receive.
type capture struct {
	subject string
	role    string
	called  bool
}

func newIdentityRig(t *testing.T) (*gin.Engine, *auth.JWTService, *auth.SessionAuthority, *capture) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := cache.NewMemoryStore(clk)
	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "finbank",
	}, clk)
	sessions := auth.NewSessionAuthority(store, auth.SessionConfig{
		Lifetime:    30 * time.Minute,
		IdleTimeout: 10 * time.Minute,
	}, nil)

	cap := &capture{}
	router := gin.New()
	router.Use(middleware.NewIdentityFilter(jwtSvc, sessions, nil).Handler())
	router.GET("/protected", func(c *gin.Context) {
		cap.called = true
		cap.subject = c.Request.Header.Get(middleware.HeaderAuthSubject)
		cap.role = c.Request.Header.Get(middleware.HeaderAuthRole)
		c.Status(http.StatusOK)
	})
	return router, jwtSvc, sessions, cap
}

func doGet(router *gin.Engine, authorization string, extra map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdentityFilter_SignedTokenFastPath(t *testing.T) {
	router, jwtSvc, _, cap := newIdentityRig(t)

	token, err := jwtSvc.Generate("cust-42", "USER")
	require.NoError(t, err)

	w := doGet(router, "Bearer "+token, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, cap.called)
	assert.Equal(t, "cust-42", cap.subject)
	assert.Equal(t, "USER", cap.role)
}

func TestIdentityFilter_OpaqueSessionSlowPath(t *testing.T) {
	router, _, sessions, cap := newIdentityRig(t)

	sessionID, err := sessions.Create(context.Background(), "cust-7", "ADMIN")
	require.NoError(t, err)

	w := doGet(router, "Bearer "+sessionID, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cust-7", cap.subject)
	assert.Equal(t, "ADMIN", cap.role)
}

func TestIdentityFilter_NoCredentialPassesThrough(t *testing.T) {
	router, _, _, cap := newIdentityRig(t)

	w := doGet(router, "", nil)

	assert.Equal(t, http.StatusOK, w.Code, "filter must never reject")
	assert.True(t, cap.called)
	assert.Empty(t, cap.subject)
	assert.Empty(t, cap.role)
}

func TestIdentityFilter_GarbageCredentialPassesThrough(t *testing.T) {
	router, _, _, cap := newIdentityRig(t)

	w := doGet(router, "Bearer not-a-token-and-not-a-session", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cap.subject)
}

func TestIdentityFilter_StripsSpoofedHeaders(t *testing.T) {
	router, _, _, cap := newIdentityRig(t)

	w := doGet(router, "", map[string]string{
		middleware.HeaderAuthSubject: "intruder",
		middleware.HeaderAuthRole:    "ADMIN",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cap.subject, "spoofed identity header must be stripped")
	assert.Empty(t, cap.role)
}

func TestIdentityFilter_NonBearerSchemeIgnored(t *testing.T) {
	router, _, _, cap := newIdentityRig(t)

	w := doGet(router, "Basic dXNlcjpwYXNz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cap.subject)
}

func TestIdentityFilter_ExpiredSessionUnauthenticated(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := cache.NewMemoryStore(clk)
	jwtSvc := auth.NewJWTService(auth.JWTConfig{Secret: "s", Expiration: time.Hour}, clk)
	sessions := auth.NewSessionAuthority(store, auth.SessionConfig{
		Lifetime:    30 * time.Minute,
		IdleTimeout: 10 * time.Minute,
	}, nil)

	cap := &capture{}
	router := gin.New()
	router.Use(middleware.NewIdentityFilter(jwtSvc, sessions, nil).Handler())
	router.GET("/protected", func(c *gin.Context) {
		cap.subject = c.Request.Header.Get(middleware.HeaderAuthSubject)
		c.Status(http.StatusOK)
	})

	sessionID, err := sessions.Create(context.Background(), "cust-9", "USER")
	require.NoError(t, err)

	// Let the idle window lapse.
	clk.Advance(11 * time.Minute)

	w := doGet(router, "Bearer "+sessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cap.subject)
}
