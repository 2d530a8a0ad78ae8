package auth

import (
	"context"
	"time"
)

// UserStore persists identities.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	UpdateProfile(ctx context.Context, id, name, phone string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role Role) error
	TouchLastLogin(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	FindByResetToken(ctx context.Context, tokenHash string) (*User, error)
	ClearResetToken(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, sessionID string) (*Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	Touch(ctx context.Context, sessionID string) error
}

// APIKeyStore persists machine credentials.
type APIKeyStore interface {
	Create(ctx context.Context, k *APIKey) error
	FindByHash(ctx context.Context, keyHash string) (*APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]*APIKey, error)
	List(ctx context.Context) ([]*APIKey, error)
	Revoke(ctx context.Context, id string) error
	RecordUse(ctx context.Context, id string) error
}
