package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbank/backend/internal/infrastructure/auth"
)

// Identity headers forwarded to downstream services.
const (
	HeaderAuthSubject = "X-Auth-Subject"
	HeaderAuthRole    = "X-Auth-Role"
)

// Gin context keys set when a credential resolves.
const (
	ContextAuthSubject = "auth_subject"
	ContextAuthRole    = "auth_role"
)

// IdentityFilter resolves the bearer credential of each request into a
// subject and role. A well-formed signed token is verified locally; any
// other value is treated as a session id and checked against the
// session authority. The filter never rejects a request: when no
// identity resolves, the request is forwarded unauthenticated and
// downstream handlers decide whether that is acceptable.
type IdentityFilter struct {
	tokens   *auth.JWTService
	sessions *auth.SessionAuthority
	logger   *zap.Logger
}

// NewIdentityFilter creates the filter.
func NewIdentityFilter(tokens *auth.JWTService, sessions *auth.SessionAuthority, l *zap.Logger) *IdentityFilter {
	if l == nil {
		l = zap.NewNop()
	}
	return &IdentityFilter{
		tokens:   tokens,
		sessions: sessions,
		logger:   l.Named("identity"),
	}
}

// Handler returns the gin middleware.
func (f *IdentityFilter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Inbound identity headers are never trusted; only this
		// filter may set them.
		c.Request.Header.Del(HeaderAuthSubject)
		c.Request.Header.Del(HeaderAuthRole)

		credential := bearerCredential(c.GetHeader("Authorization"))
		if credential == "" {
			c.Next()
			return
		}

		if subject, role, ok := f.resolveToken(credential); ok {
			f.attach(c, subject, role)
			c.Next()
			return
		}

		if subject, role, ok := f.resolveSession(c, credential); ok {
			f.attach(c, subject, role)
		}
		c.Next()
	}
}

// resolveToken is the fast path: a signed token carries its own
// subject and role, so no store round-trip is needed. Any validation
// failure falls through silently; the value may simply be an opaque
// session id rather than a malformed token.
func (f *IdentityFilter) resolveToken(credential string) (subject, role string, ok bool) {
	claims, err := f.tokens.Validate(credential)
	if err != nil {
		return "", "", false
	}
	return claims.Subject, claims.Role, true
}

// resolveSession is the slow path: the credential is treated as a
// session id and checked against the shared cache. Valid use extends
// the session's idle window.
func (f *IdentityFilter) resolveSession(c *gin.Context, sessionID string) (subject, role string, ok bool) {
	ctx := c.Request.Context()
	if !f.sessions.IsValid(ctx, sessionID) {
		return "", "", false
	}
	identity, ok := f.sessions.Identity(ctx, sessionID)
	if !ok {
		return "", "", false
	}
	f.sessions.Touch(ctx, sessionID)
	return identity.Subject, identity.Role, true
}

func (f *IdentityFilter) attach(c *gin.Context, subject, role string) {
	c.Request.Header.Set(HeaderAuthSubject, subject)
	c.Request.Header.Set(HeaderAuthRole, role)
	c.Set(ContextAuthSubject, subject)
	c.Set(ContextAuthRole, role)
}

// bearerCredential extracts the credential from an Authorization
// header, or returns "" when the header is absent or not Bearer.
func bearerCredential(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
