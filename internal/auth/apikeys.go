package auth

import (
	"context"
	"strings"
	"time"

	"sentra.dev/internal/audit"
	"sentra.dev/internal/ids"
)

// CreatedAPIKey pairs the stored record with the raw key. The raw value
// exists only in this struct, for exactly one response.
type CreatedAPIKey struct {
	Key *APIKey
	Raw string
}

// CreateAPIKey mints a key for programmatic access on behalf of the
// principal. ExpiresIn of zero means the key does not expire.
func (s *Service) CreateAPIKey(ctx context.Context, p Principal, name string, expiresIn time.Duration, meta Meta) (CreatedAPIKey, error) {
	if p.User == nil {
		return CreatedAPIKey{}, ErrUnauthenticated
	}
	if s.keys == nil {
		return CreatedAPIKey{}, ErrNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" || expiresIn < 0 {
		return CreatedAPIKey{}, ErrInvalidInput
	}
	raw, hash, err := newSecret(apiKeyPrefix)
	if err != nil {
		return CreatedAPIKey{}, err
	}
	now := s.now().UTC()
	key := &APIKey{
		ID:      ids.New(),
		UserID:  p.User.ID,
		Name:    name,
		Prefix:  raw[:len(apiKeyPrefix)+5],
		KeyHash: hash,
		Status:  APIKeyStatusActive,
	}
	key.CreatedAt = now
	if expiresIn > 0 {
		t := now.Add(expiresIn)
		key.ExpiresAt = &t
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return CreatedAPIKey{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  p.User.ID,
		ActorEmail:   p.User.Email,
		Action:       audit.ActionAPIKeyCreated,
		ResourceType: audit.ResourceAPIKey,
		ResourceID:   key.ID,
		Details:      map[string]any{"name": name, "prefix": key.Prefix},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return CreatedAPIKey{Key: key, Raw: raw}, nil
}

// ListAPIKeys returns the principal's own keys. Admins see every key.
func (s *Service) ListAPIKeys(ctx context.Context, p Principal, all bool) ([]*APIKey, error) {
	if p.User == nil {
		return nil, ErrUnauthenticated
	}
	if s.keys == nil {
		return nil, nil
	}
	if all {
		if err := s.RequireRole(p, AdminRoles...); err != nil {
			return nil, err
		}
		return s.keys.List(ctx)
	}
	return s.keys.ListByUser(ctx, p.User.ID)
}

// RevokeAPIKey revokes a key. Owners may revoke their own keys; admins may
// revoke anyone's.
func (s *Service) RevokeAPIKey(ctx context.Context, p Principal, keyID string, meta Meta) error {
	if p.User == nil {
		return ErrUnauthenticated
	}
	if s.keys == nil {
		return ErrNotFound
	}
	keys, err := s.keys.ListByUser(ctx, p.User.ID)
	if err != nil {
		return err
	}
	owned := false
	for i := range keys {
		if keys[i].ID == keyID {
			owned = true
			break
		}
	}
	if !owned {
		if err := s.RequireRole(p, AdminRoles...); err != nil {
			// Existence of someone else's key is not revealed.
			return ErrNotFound
		}
	}
	if err := s.keys.Revoke(ctx, keyID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  p.User.ID,
		ActorEmail:   p.User.Email,
		Action:       audit.ActionAPIKeyRevoked,
		ResourceType: audit.ResourceAPIKey,
		ResourceID:   keyID,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// AuthenticateAPIKey resolves a raw key to its owning user. Expired or
// revoked keys authenticate nothing.
func (s *Service) AuthenticateAPIKey(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if s.keys == nil || !strings.HasPrefix(raw, apiKeyPrefix) {
		return Principal{}, ErrUnauthenticated
	}
	key, err := s.keys.FindByHash(ctx, hashSecret(raw))
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	if key.Status != APIKeyStatusActive {
		return Principal{}, ErrUnauthenticated
	}
	if key.ExpiresAt != nil && !s.now().Before(*key.ExpiresAt) {
		return Principal{}, ErrUnauthenticated
	}
	user, err := s.users.Find(ctx, key.UserID)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	_ = s.keys.RecordUse(ctx, key.ID)
	return Principal{User: user}, nil
}
