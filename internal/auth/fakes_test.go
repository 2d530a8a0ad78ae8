package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In-memory stores for service tests. They mirror the pg implementations'
// error contract: ErrNotFound for missing rows, ErrConflict on duplicates.

type memUserStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*User
	clock func() time.Time

	resetHash   map[string]string
	resetExpiry map[string]time.Time
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:       make(map[string]*User),
		clock:       time.Now,
		resetHash:   make(map[string]string),
		resetExpiry: make(map[string]time.Time),
	}
}

func (m *memUserStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	if u.ID == "" {
		m.seq++
		u.ID = fmt.Sprintf("user-%d", m.seq)
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserStore) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserStore) List(_ context.Context, limit, offset int) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUserStore) UpdateProfile(_ context.Context, id, name, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Name, u.Phone = name, phone
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUserStore) UpdateRole(_ context.Context, id string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUserStore) TouchLastLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

func (m *memUserStore) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	m.resetHash[id] = tokenHash
	m.resetExpiry[id] = expiresAt
	return nil
}

func (m *memUserStore) FindByResetToken(_ context.Context, tokenHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hash := range m.resetHash {
		if hash == tokenHash && m.clock().Before(m.resetExpiry[id]) {
			cp := *m.users[id]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserStore) ClearResetToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resetHash, id)
	delete(m.resetExpiry, id)
	return nil
}

func (m *memUserStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*Session)}
}

func (m *memSessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrConflict
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) Find(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Revoke(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.IsActive = false
	}
	return nil
}

func (m *memSessionStore) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (m *memSessionStore) Touch(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		now := time.Now().UTC()
		s.LastUsed = &now
	}
	return nil
}

type memKeyStore struct {
	mu   sync.Mutex
	keys map[string]*APIKey
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{keys: make(map[string]*APIKey)}
}

func (m *memKeyStore) Create(_ context.Context, k *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.keys[k.ID] = &cp
	return nil
}

func (m *memKeyStore) FindByHash(_ context.Context, keyHash string) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memKeyStore) ListByUser(_ context.Context, userID string) ([]*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memKeyStore) List(_ context.Context) ([]*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*APIKey, 0, len(m.keys))
	for _, k := range m.keys {
		cp := *k
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memKeyStore) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.Status = APIKeyStatusRevoked
	return nil
}

func (m *memKeyStore) RecordUse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		k.UsageCount++
		now := time.Now().UTC()
		k.LastUsed = &now
	}
	return nil
}
