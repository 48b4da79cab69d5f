package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbank/backend/internal/application/customer"
	"github.com/finbank/backend/internal/infrastructure/auth"
	"github.com/finbank/backend/internal/interfaces/http/middleware"
)

// AuthHandler serves login, logout, and identity echo.
type AuthHandler struct {
	customers *customer.Service
	sessions  *auth.SessionAuthority
	tokens    *auth.TokenAuthority
	logger    *zap.Logger
}

// NewAuthHandler creates the handler.
func NewAuthHandler(customers *customer.Service, sessions *auth.SessionAuthority, tokens *auth.TokenAuthority, l *zap.Logger) *AuthHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthHandler{
		customers: customers,
		sessions:  sessions,
		tokens:    tokens,
		logger:    l.Named("auth"),
	}
}

// Register mounts the auth routes.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", h.Me)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Subject   string `json:"subject"`
	Role      string `json:"role"`
}

// Login verifies credentials, creates a session, and issues an opaque
// token. Both credential shapes accepted by the identity filter come
// from here.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := c.Request.Context()
	cust, err := h.customers.Authenticate(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, customer.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, customer.ErrCustomerDeactivated):
		respondError(c, http.StatusForbidden, "account is deactivated")
		return
	case err != nil:
		h.logger.Error("login failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "login failed")
		return
	}

	sessionID, err := h.sessions.Create(ctx, cust.ID, cust.Role)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.tokens.Issue(ctx, cust.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		SessionID: sessionID,
		Token:     token,
		Subject:   cust.ID,
		Role:      cust.Role,
	})
}

// Logout revokes the presented credential: the token is blacklisted
// and, when the credential is a session id, the session is destroyed.
// Revoking an unknown credential is not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	credential := bearerValue(c.GetHeader("Authorization"))
	if credential == "" {
		respondError(c, http.StatusBadRequest, "missing bearer credential")
		return
	}

	ctx := c.Request.Context()
	if err := h.tokens.Blacklist(ctx, credential); err != nil {
		h.logger.Error("failed to blacklist token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "logout failed")
		return
	}
	if err := h.sessions.Destroy(ctx, credential); err != nil {
		h.logger.Error("failed to destroy session", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "logout failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// Me echoes the identity the filter resolved, or 401 when the request
// arrived unauthenticated. This is the one endpoint on the gateway
// itself that requires authentication.
func (h *AuthHandler) Me(c *gin.Context) {
	subject := c.GetString(middleware.ContextAuthSubject)
	if subject == "" {
		respondError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject": subject,
		"role":    c.GetString(middleware.ContextAuthRole),
	})
}

func bearerValue(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
