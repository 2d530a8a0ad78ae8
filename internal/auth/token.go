package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed token payload. Email and Role are a snapshot taken
// at issuance; the session check plus a live role read make authorization
// authoritative, not the token alone.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies compact identity credentials using a
// single server-held HS256 secret. Key rotation is deliberately out of
// scope; the issuer is a constructed value rather than a process global so
// a rotating variant can replace it without touching call sites.
type TokenIssuer struct {
	secret      []byte
	issuer      string
	accessTTL   time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock overrides the issuer's time source.
func WithTokenClock(fn func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret, issuer string, accessTTL, rememberTTL time.Duration, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if accessTTL <= 0 || rememberTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	t := &TokenIssuer{
		secret:      []byte(secret),
		issuer:      strings.TrimSpace(issuer),
		accessTTL:   accessTTL,
		rememberTTL: rememberTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for the user and session. The remember-me flag picks
// the long lifetime; both values come from configuration.
func (t *TokenIssuer) Issue(u *User, sessionID string, rememberMe bool) (string, time.Time, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return "", time.Time{}, errors.New("auth: user is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", time.Time{}, errors.New("auth: session id is required")
	}

	ttl := t.accessTTL
	if rememberMe {
		ttl = t.rememberTTL
	}
	now := t.now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token. Any structural, signature or expiry
// failure yields ErrInvalidToken, so every call site has exactly one
// failure branch to handle.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
