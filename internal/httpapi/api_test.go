package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sentra.dev/internal/audit"
	"sentra.dev/internal/auth"
	"sentra.dev/internal/config"
	"sentra.dev/internal/orders"
	"sentra.dev/internal/ratelimit"
)

// Minimal in-memory stores backing the handler tests.

type userStore struct {
	seq   int
	users map[string]*auth.User
}

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	if u.ID == "" {
		s.seq++
		u.ID = fmt.Sprintf("user-%d", s.seq)
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) Find(_ context.Context, id string) (*auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) List(_ context.Context, limit, offset int) ([]*auth.User, error) {
	var out []*auth.User
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *userStore) UpdateProfile(_ context.Context, id, name, phone string) error {
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Name, u.Phone = name, phone
	return nil
}

func (s *userStore) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *userStore) UpdateRole(_ context.Context, id string, role auth.Role) error {
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *userStore) TouchLastLogin(_ context.Context, _ string) error { return nil }

func (s *userStore) SetResetToken(_ context.Context, _, _ string, _ time.Time) error { return nil }

func (s *userStore) FindByResetToken(_ context.Context, _ string) (*auth.User, error) {
	return nil, auth.ErrNotFound
}

func (s *userStore) ClearResetToken(_ context.Context, _ string) error { return nil }

func (s *userStore) Delete(_ context.Context, id string) error {
	delete(s.users, id)
	return nil
}

type sessionStore struct {
	sessions map[string]*auth.Session
}

func (s *sessionStore) Create(_ context.Context, session *auth.Session) error {
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *sessionStore) Find(_ context.Context, id string) (*auth.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *sessionStore) Revoke(_ context.Context, id string) error {
	if session, ok := s.sessions[id]; ok {
		session.IsActive = false
	}
	return nil
}

func (s *sessionStore) RevokeAllForUser(_ context.Context, userID string) error {
	for _, session := range s.sessions {
		if session.UserID == userID {
			session.IsActive = false
		}
	}
	return nil
}

func (s *sessionStore) Touch(_ context.Context, _ string) error { return nil }

type keyStore struct {
	keys map[string]*auth.APIKey
}

func (s *keyStore) Create(_ context.Context, k *auth.APIKey) error {
	cp := *k
	s.keys[k.ID] = &cp
	return nil
}

func (s *keyStore) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	for _, k := range s.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *keyStore) ListByUser(_ context.Context, userID string) ([]*auth.APIKey, error) {
	var out []*auth.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *keyStore) List(_ context.Context) ([]*auth.APIKey, error) {
	var out []*auth.APIKey
	for _, k := range s.keys {
		cp := *k
		out = append(out, &cp)
	}
	return out, nil
}

func (s *keyStore) Revoke(_ context.Context, id string) error {
	k, ok := s.keys[id]
	if !ok {
		return auth.ErrNotFound
	}
	k.Status = auth.APIKeyStatusRevoked
	return nil
}

func (s *keyStore) RecordUse(_ context.Context, _ string) error { return nil }

type orderStore struct {
	orders map[string]*orders.Order
}

func (s *orderStore) Create(_ context.Context, o *orders.Order) error {
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *orderStore) Find(_ context.Context, id string) (*orders.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *orderStore) List(_ context.Context, f orders.Filter) ([]*orders.Order, error) {
	var out []*orders.Order
	for _, o := range s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (s *orderStore) UpdateStatus(_ context.Context, id string, status orders.Status) error {
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	return nil
}

type auditStore struct {
	entries []audit.Entry
	fail    bool
}

func (s *auditStore) Append(_ context.Context, e *audit.Entry) error {
	if s.fail {
		return fmt.Errorf("audit store down")
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *auditStore) Query(_ context.Context, _ audit.Filter) ([]audit.Entry, error) {
	return s.entries, nil
}

func (s *auditStore) byAction(action string) []audit.Entry {
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// Shared bcrypt hash for the one test password; cost 12 is too slow to
// recompute per test.
var testPasswordHash string

const testPassword = "pa55word-original"

func passwordHash(t *testing.T) string {
	t.Helper()
	if testPasswordHash == "" {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		testPasswordHash = h
	}
	return testPasswordHash
}

type env struct {
	api      *API
	handler  http.Handler
	users    *userStore
	sessions *sessionStore
	trail    *auditStore
	ordersDB *orderStore
	now      *time.Time
}

func testConfig() config.Config {
	return config.Config{
		Addr:           ":0",
		AuthSecret:     "test-secret-at-least-32-bytes-long!!",
		Issuer:         "sentra",
		AccessTTL:      time.Hour,
		RememberMeTTL:  30 * 24 * time.Hour,
		CookieName:     "sentra_token",
		FallbackHeader: "X-Auth-Token",
		RateLimits: map[string]config.RateRule{
			config.ActionLogin:         {Limit: 5, Window: 15 * time.Minute},
			config.ActionPasswordReset: {Limit: 3, Window: time.Hour},
		},
		AdminRoles:    []string{"super_admin", "admin"},
		ManagerRoles:  []string{"super_admin", "admin", "manager"},
		ThrottleRPS:   1000,
		ThrottleBurst: 1000,
		MaxBodyBytes:  1 << 20,
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := testConfig()

	users := &userStore{users: make(map[string]*auth.User)}
	sessions := &sessionStore{sessions: make(map[string]*auth.Session)}
	keys := &keyStore{keys: make(map[string]*auth.APIKey)}
	trail := &auditStore{}
	orderDB := &orderStore{orders: make(map[string]*orders.Order)}

	sessionMgr, err := auth.NewSessions(sessions, cfg.AccessTTL, cfg.RememberMeTTL, auth.WithSessionClock(clock))
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(cfg.AuthSecret, cfg.Issuer, cfg.AccessTTL, cfg.RememberMeTTL, auth.WithTokenClock(clock))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	budgets := make(map[string]ratelimit.Rule, len(cfg.RateLimits))
	for action, rule := range cfg.RateLimits {
		budgets[action] = ratelimit.Rule{Limit: rule.Limit, Window: rule.Window}
	}
	trailLogger := audit.NewLogger(trail, audit.WithClock(clock))
	authSvc, err := auth.NewService(users, sessionMgr, keys, issuer,
		auth.WithClock(clock),
		auth.WithRateLimiter(ratelimit.New(ratelimit.WithClock(clock)), budgets),
		auth.WithAuditLogger(trailLogger),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	orderSvc, err := orders.NewService(orderDB, trailLogger, orders.WithClock(clock))
	if err != nil {
		t.Fatalf("orders.NewService: %v", err)
	}

	api := New(authSvc, orderSvc, ReadyProbe{}, cfg, "test")
	return &env{
		api:      api,
		handler:  api.Handler(),
		users:    users,
		sessions: sessions,
		trail:    trail,
		ordersDB: orderDB,
		now:      &now,
	}
}

func (e *env) addUser(t *testing.T, email string, role auth.Role) *auth.User {
	t.Helper()
	u := &auth.User{Name: "Test User", Email: email, PasswordHash: passwordHash(t), Role: role}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (e *env) do(t *testing.T, method, path, body string, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "203.0.113.9:12345"
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (e *env) login(t *testing.T, email string) (token string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/login",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, testPassword), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login response missing token")
	}
	return resp.Token
}
