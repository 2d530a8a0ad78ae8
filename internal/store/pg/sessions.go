package pg

import (
	"context"
	"database/sql"

	"sentra.dev/internal/auth"
)

// Sessions implements auth.SessionStore.
type Sessions struct {
	store *Store
}

var _ auth.SessionStore = (*Sessions)(nil)

func (s *Store) Sessions() *Sessions { return &Sessions{store: s} }

func (s *Sessions) Create(ctx context.Context, session *auth.Session) error {
	_, err := s.store.db.ExecContext(ctx, `
		insert into sessions(id, user_id, created_at, expires_at, is_active, ip, user_agent)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''))
	`, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt, session.IsActive, session.IP, session.UserAgent)
	return translate(err)
}

func (s *Sessions) Find(ctx context.Context, sessionID string) (*auth.Session, error) {
	var session auth.Session
	var ip, userAgent sql.NullString
	var lastUsed sql.NullTime
	err := s.store.db.QueryRowContext(ctx, `
		select id, user_id, created_at, expires_at, is_active, last_used, ip, user_agent
		from sessions where id=$1
	`, sessionID).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt, &session.IsActive, &lastUsed, &ip, &userAgent)
	if err != nil {
		return nil, translate(err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		session.LastUsed = &t
	}
	if ip.Valid {
		session.IP = ip.String
	}
	if userAgent.Valid {
		session.UserAgent = userAgent.String
	}
	return &session, nil
}

// Revoke is idempotent: revoking a missing or already-revoked session
// affects zero rows and that is fine.
func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		update sessions set is_active=false where id=$1
	`, sessionID)
	return translate(err)
}

func (s *Sessions) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		update sessions set is_active=false where user_id=$1 and is_active
	`, userID)
	return translate(err)
}

func (s *Sessions) Touch(ctx context.Context, sessionID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		update sessions set last_used=now() where id=$1
	`, sessionID)
	return translate(err)
}
