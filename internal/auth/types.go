package auth

import "time"

// User is the stored identity. Its role is authoritative; the role embedded
// in an issued token is only a snapshot.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// Session is a server-tracked login record, revocable independently of the
// token that names it. At most one row per ID. A session is valid only
// while active, unexpired and owned by the claimant; EXPIRED and REVOKED
// are terminal.
type Session struct {
	ID        string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	IsActive  bool       `json:"is_active"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
}

// APIKey is a long-lived machine credential. Only the hash is stored; the
// raw secret is returned exactly once, at creation.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	Status     string     `json:"status"`
	UsageCount int64      `json:"usage_count"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// API key lifecycle states.
const (
	APIKeyStatusActive  = "active"
	APIKeyStatusRevoked = "revoked"
)

// Principal is the session-confirmed identity attached to a request. User
// is read live from the store during authentication, so its Role reflects
// demotions that happened after the token was issued.
type Principal struct {
	User      *User
	SessionID string
}
