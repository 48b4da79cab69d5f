package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache key prefixes. These are addressed by convention from every
// service sharing the store, so they must remain stable.
const (
	sessionKeyPrefix     = "session:"
	sessionIdleKeyPrefix = "session_idle:"
)

// sessionRecordVersion is the current session payload schema version.
// Records with a different version are treated as invalid, not migrated.
const sessionRecordVersion = 1

// Identity is the authenticated caller resolved from a credential.
type Identity struct {
	Subject string
	Role    string
}

// sessionRecord is the structured payload stored under the session data
// key. Unknown versions and missing fields are validation errors.
type sessionRecord struct {
	Version int    `json:"version"`
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

// SessionAuthority validates and mutates browser-session state in the
// shared cache. A session is represented by two independently expiring
// keys: the data key (absolute lifetime) and the idle key (sliding
// inactivity window). A session is valid only while both exist; there is
// no repair path, a half-present session is simply invalid.
//
// Store failures never escape into the request path: validity checks
// fail open to "not authenticated" and log at warning level.
type SessionAuthority struct {
	store       cache.Store
	lifetime    time.Duration
	idleTimeout time.Duration
	logger      *zap.Logger
}

// SessionConfig holds session lifetime settings.
type SessionConfig struct {
	Lifetime    time.Duration
	IdleTimeout time.Duration
}

// NewSessionAuthority creates a SessionAuthority on the given store.
func NewSessionAuthority(store cache.Store, cfg SessionConfig, logger *zap.Logger) *SessionAuthority {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionAuthority{
		store:       store,
		lifetime:    cfg.Lifetime,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger,
	}
}

// Create establishes a new session for the subject and returns its id.
func (a *SessionAuthority) Create(ctx context.Context, subject, role string) (string, error) {
	sessionID := uuid.New().String()

	payload, err := json.Marshal(sessionRecord{
		Version: sessionRecordVersion,
		Subject: subject,
		Role:    role,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session record: %w", err)
	}

	if err := a.store.Set(ctx, sessionKeyPrefix+sessionID, string(payload), a.lifetime); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	if err := a.store.Set(ctx, sessionIdleKeyPrefix+sessionID, "1", a.idleTimeout); err != nil {
		return "", fmt.Errorf("failed to store session idle marker: %w", err)
	}

	return sessionID, nil
}

// IsValid reports whether both backing keys of the session exist. Any
// store error yields false.
func (a *SessionAuthority) IsValid(ctx context.Context, sessionID string) bool {
	dataExists, err := a.store.Exists(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		a.logger.Warn("session data key check failed, treating session as invalid",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false
	}
	if !dataExists {
		return false
	}

	idleExists, err := a.store.Exists(ctx, sessionIdleKeyPrefix+sessionID)
	if err != nil {
		a.logger.Warn("session idle key check failed, treating session as invalid",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false
	}
	return idleExists
}

// Identity reads and decodes the session payload. A malformed or
// unversioned payload is logged and treated as absent, never surfaced as
// an error to the request path.
func (a *SessionAuthority) Identity(ctx context.Context, sessionID string) (Identity, bool) {
	payload, found, err := a.store.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		a.logger.Warn("session payload read failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return Identity{}, false
	}
	if !found {
		return Identity{}, false
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		a.logger.Warn("malformed session payload",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return Identity{}, false
	}
	if rec.Version != sessionRecordVersion || rec.Subject == "" || rec.Role == "" {
		a.logger.Warn("session payload failed validation",
			zap.String("session_id", sessionID),
			zap.Int("version", rec.Version))
		return Identity{}, false
	}

	return Identity{Subject: rec.Subject, Role: rec.Role}, true
}

// Touch refreshes both expiries, marking activity on the session.
func (a *SessionAuthority) Touch(ctx context.Context, sessionID string) {
	if _, err := a.store.Expire(ctx, sessionKeyPrefix+sessionID, a.lifetime); err != nil {
		a.logger.Warn("failed to refresh session lifetime",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	if _, err := a.store.Expire(ctx, sessionIdleKeyPrefix+sessionID, a.idleTimeout); err != nil {
		a.logger.Warn("failed to refresh session idle window",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// Destroy removes both session keys.
func (a *SessionAuthority) Destroy(ctx context.Context, sessionID string) error {
	if _, err := a.store.Delete(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if _, err := a.store.Delete(ctx, sessionIdleKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to delete session idle marker: %w", err)
	}
	return nil
}
