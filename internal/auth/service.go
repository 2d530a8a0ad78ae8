package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"sentra.dev/internal/audit"
	"sentra.dev/internal/obs"
	"sentra.dev/internal/ratelimit"
)

const (
	passwordMinLength = 8
	resetTokenTTL     = time.Hour

	actionLogin         = "login"
	actionPasswordReset = "password_reset"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// Meta carries request attribution for rate limiting and audit entries.
type Meta struct {
	IP        string
	UserAgent string
}

// Service composes hashing, tokens, sessions, rate limiting and audit into
// the operations behind every protected endpoint.
type Service struct {
	users    UserStore
	sessions *Sessions
	keys     APIKeyStore
	tokens   *TokenIssuer
	limiter  *ratelimit.Limiter
	budgets  map[string]ratelimit.Rule
	audit    *audit.Logger
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRateLimiter wires the per-action attempt budgets.
func WithRateLimiter(l *ratelimit.Limiter, budgets map[string]ratelimit.Rule) ServiceOption {
	return func(s *Service) {
		s.limiter = l
		s.budgets = budgets
	}
}

// WithAuditLogger wires the audit trail.
func WithAuditLogger(logger *audit.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// NewService constructs the Service.
func NewService(users UserStore, sessions *Sessions, keys APIKeyStore, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if sessions == nil {
		return nil, errors.New("auth: session manager is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		keys:     keys,
		tokens:   tokens,
		audit:    audit.NewLogger(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// allow consults the per-action budget. A service without a limiter (some
// tests) allows everything.
func (s *Service) allow(action, identity string) bool {
	if s.limiter == nil {
		return true
	}
	rule, ok := s.budgets[action]
	if !ok {
		return true
	}
	if s.limiter.Allow(ratelimit.Key(action, identity), rule) {
		return true
	}
	obs.CountRateLimited(action)
	return false
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
	SessionID string
}

// Login authenticates credentials and opens a session. The rate limiter
// runs before any credential work so a throttled caller never learns
// whether the account exists; every other failure collapses into
// ErrUnauthenticated for the same reason.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool, meta Meta) (LoginResult, error) {
	if !s.allow(actionLogin, meta.IP) {
		obs.CountLogin("throttled")
		return LoginResult{}, ErrRateLimited
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		obs.CountLogin("failure")
		return LoginResult{}, ErrUnauthenticated
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		obs.CountLogin("failure")
		return LoginResult{}, ErrUnauthenticated
	}
	if !VerifyPassword(user.PasswordHash, password) {
		obs.CountLogin("failure")
		return LoginResult{}, ErrUnauthenticated
	}

	// Timestamp refresh is cosmetic; a failure must not block the login.
	_ = s.users.TouchLastLogin(ctx, user.ID)

	session, err := s.sessions.Create(ctx, user.ID, rememberMe, meta.IP, meta.UserAgent)
	if err != nil {
		return LoginResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(user, session.ID, rememberMe)
	if err != nil {
		return LoginResult{}, err
	}

	obs.CountLogin("success")
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  user.ID,
		ActorEmail:   user.Email,
		Action:       audit.ActionUserLogin,
		ResourceType: audit.ResourceUser,
		ResourceID:   user.ID,
		Details:      map[string]any{"remember_me": rememberMe},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})

	return LoginResult{User: user, Token: token, ExpiresAt: expiresAt, SessionID: session.ID}, nil
}

// VerifyToken decodes a credential without touching session state. The
// request gate uses it for its fast-fail role check; the result is a
// snapshot, never an authorization decision.
func (s *Service) VerifyToken(raw string) (*Claims, error) {
	return s.tokens.Verify(raw)
}

// Authenticate turns a raw credential into a session-confirmed principal:
// token verification, session ownership/liveness, then a live user read so
// the principal's role reflects changes made after issuance.
func (s *Service) Authenticate(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return s.AuthenticateClaims(ctx, claims)
}

// AuthenticateClaims finishes authentication for already-verified claims.
func (s *Service) AuthenticateClaims(ctx context.Context, claims *Claims) (Principal, error) {
	if claims == nil {
		return Principal{}, ErrUnauthenticated
	}
	if !s.sessions.Validate(ctx, claims.SessionID, claims.UserID) {
		return Principal{}, ErrUnauthenticated
	}
	user, err := s.users.Find(ctx, claims.UserID)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{User: user, SessionID: claims.SessionID}, nil
}

// RequireRole enforces explicit set membership on an authenticated
// principal, distinguishing authorization failure from authentication.
func (s *Service) RequireRole(p Principal, allowed ...Role) error {
	if p.User == nil {
		return ErrUnauthenticated
	}
	if !HasRole(p.User.Role, allowed...) {
		return ErrForbidden
	}
	return nil
}

// Logout revokes the principal's session. Idempotent.
func (s *Service) Logout(ctx context.Context, p Principal, meta Meta) error {
	if p.User == nil || p.SessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, p.SessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  p.User.ID,
		ActorEmail:   p.User.Email,
		Action:       audit.ActionUserLogout,
		ResourceType: audit.ResourceUser,
		ResourceID:   p.User.ID,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// ChangePassword verifies the current password, stores a new hash and
// revokes every session of the user, forcing re-login everywhere.
func (s *Service) ChangePassword(ctx context.Context, p Principal, current, next string, meta Meta) error {
	if p.User == nil {
		return ErrUnauthenticated
	}
	if len(next) < passwordMinLength {
		return ErrInvalidInput
	}
	if !VerifyPassword(p.User.PasswordHash, current) {
		return ErrUnauthenticated
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, p.User.ID, hash); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, p.User.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  p.User.ID,
		ActorEmail:   p.User.Email,
		Action:       audit.ActionUserPasswordChanged,
		ResourceType: audit.ResourceUser,
		ResourceID:   p.User.ID,
		Details:      map[string]any{"sessions_revoked": true},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// RequestPasswordReset mints a single-use reset token when the account
// exists. The raw token is handed to the mail collaborator; the HTTP
// response is identical whether or not the account exists. The returned
// token is empty when no account matched.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, meta Meta) (string, error) {
	if !s.allow(actionPasswordReset, meta.IP) {
		return "", ErrRateLimited
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Deliberately indistinguishable from success at the HTTP layer.
		return "", nil
	}
	raw, hash, err := newSecret(resetPrefix)
	if err != nil {
		return "", err
	}
	expiresAt := s.now().UTC().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return "", err
	}
	return raw, nil
}

// ResetPassword consumes a reset token, stores the new password and
// revokes every session of the user.
func (s *Service) ResetPassword(ctx context.Context, rawToken, next string, meta Meta) error {
	if len(next) < passwordMinLength {
		return ErrInvalidInput
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrUnauthenticated
	}
	user, err := s.users.FindByResetToken(ctx, hashSecret(rawToken))
	if err != nil {
		return ErrUnauthenticated
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  user.ID,
		ActorEmail:   user.Email,
		Action:       audit.ActionUserPasswordReset,
		ResourceType: audit.ResourceUser,
		ResourceID:   user.ID,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// RegisterRequest is a customer self-signup.
type RegisterRequest struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register creates a customer account. Email and phone are validated at
// the edge; the core never sees malformed identities.
func (s *Service) Register(ctx context.Context, req RegisterRequest, meta Meta) (*User, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || !emailPattern.MatchString(req.Email) {
		return nil, ErrInvalidInput
	}
	if req.Phone != "" && !phonePattern.MatchString(req.Phone) {
		return nil, ErrInvalidInput
	}
	if len(req.Password) < passwordMinLength {
		return nil, ErrInvalidInput
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         RoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  user.ID,
		ActorEmail:   user.Email,
		Action:       audit.ActionUserCreated,
		ResourceType: audit.ResourceUser,
		ResourceID:   user.ID,
		Details:      map[string]any{"self_registration": true},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return user, nil
}

// ProfileUpdate names the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// UpdateProfile applies a partial profile update for the principal itself.
func (s *Service) UpdateProfile(ctx context.Context, p Principal, upd ProfileUpdate, meta Meta) (*User, error) {
	if p.User == nil {
		return nil, ErrUnauthenticated
	}
	name, phone := p.User.Name, p.User.Phone
	var changed []string
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return nil, ErrInvalidInput
		}
		if trimmed != name {
			name = trimmed
			changed = append(changed, "name")
		}
	}
	if upd.Phone != nil {
		trimmed := strings.TrimSpace(*upd.Phone)
		if trimmed != "" && !phonePattern.MatchString(trimmed) {
			return nil, ErrInvalidInput
		}
		if trimmed != phone {
			phone = trimmed
			changed = append(changed, "phone")
		}
	}
	if len(changed) == 0 {
		return p.User, nil
	}
	if err := s.users.UpdateProfile(ctx, p.User.ID, name, phone); err != nil {
		return nil, err
	}
	user, err := s.users.Find(ctx, p.User.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  p.User.ID,
		ActorEmail:   p.User.Email,
		Action:       audit.ActionUserUpdated,
		ResourceType: audit.ResourceUser,
		ResourceID:   p.User.ID,
		Details:      map[string]any{"changed": changed},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return user, nil
}
