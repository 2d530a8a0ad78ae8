package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sentra.dev/internal/ids"
)

// Sessions manages server-tracked login records. Session lifetimes follow
// the token lifetimes so a token never outlives the session naming it.
type Sessions struct {
	store       SessionStore
	accessTTL   time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithSessionClock overrides the time source.
func WithSessionClock(fn func() time.Time) SessionsOption {
	return func(s *Sessions) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessions constructs the session manager.
func NewSessions(store SessionStore, accessTTL, rememberTTL time.Duration, opts ...SessionsOption) (*Sessions, error) {
	if store == nil {
		return nil, errors.New("auth: session store is required")
	}
	if accessTTL <= 0 || rememberTTL <= 0 {
		return nil, errors.New("auth: session lifetimes must be positive")
	}
	s := &Sessions{
		store:       store,
		accessTTL:   accessTTL,
		rememberTTL: rememberTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create opens a new session for the user at login.
func (s *Sessions) Create(ctx context.Context, userID string, rememberMe bool, ip, userAgent string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	ttl := s.accessTTL
	if rememberMe {
		ttl = s.rememberTTL
	}
	now := s.now().UTC()
	session := &Session{
		ID:        ids.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IsActive:  true,
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate reports whether the session exists, is active, is unexpired and
// belongs to the claimed user. This check is what invalidates a
// syntactically valid token after logout, password change or demotion.
func (s *Sessions) Validate(ctx context.Context, sessionID, claimedUserID string) bool {
	sessionID = strings.TrimSpace(sessionID)
	claimedUserID = strings.TrimSpace(claimedUserID)
	if sessionID == "" || claimedUserID == "" {
		return false
	}
	session, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return false
	}
	if !session.IsActive {
		return false
	}
	if !s.now().Before(session.ExpiresAt) {
		return false
	}
	if session.UserID != claimedUserID {
		return false
	}
	// Usage tracking only; a failed touch never fails validation.
	_ = s.store.Touch(ctx, sessionID)
	return true
}

// Revoke marks a session inactive. Idempotent; revoking an unknown or
// already-revoked session is not an error.
func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	return s.store.Revoke(ctx, sessionID)
}

// RevokeAllForUser revokes every session of a user. Used on password change
// and role demotion.
func (s *Sessions) RevokeAllForUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	return s.store.RevokeAllForUser(ctx, userID)
}
