package auth

import (
	"context"
	"strings"

	"sentra.dev/internal/audit"
)

// CreateUserRequest is an admin-initiated account creation. Unlike
// self-registration, any role may be assigned.
type CreateUserRequest struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     Role
}

// CreateUser creates an account on behalf of an administrator.
func (s *Service) CreateUser(ctx context.Context, actor Principal, req CreateUserRequest, meta Meta) (*User, error) {
	if err := s.RequireRole(actor, AdminRoles...); err != nil {
		return nil, err
	}
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
	if _, ok := ParseRole(string(req.Role)); !ok {
		return nil, ErrInvalidInput
	}
	// Only a super admin may mint another super admin.
	if req.Role == RoleSuperAdmin && actor.User.Role != RoleSuperAdmin {
		return nil, ErrForbidden
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
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  actor.User.ID,
		ActorEmail:   actor.User.Email,
		Action:       audit.ActionUserCreated,
		ResourceType: audit.ResourceUser,
		ResourceID:   user.ID,
		Details:      map[string]any{"role": string(user.Role)},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return user, nil
}

// ListUsers returns accounts for the admin console.
func (s *Service) ListUsers(ctx context.Context, actor Principal, limit, offset int) ([]*User, error) {
	if err := s.RequireRole(actor, AdminRoles...); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

// GetUser fetches one account for the admin console.
func (s *Service) GetUser(ctx context.Context, actor Principal, userID string) (*User, error) {
	if err := s.RequireRole(actor, AdminRoles...); err != nil {
		return nil, err
	}
	return s.users.Find(ctx, userID)
}

// UpdateUserRole changes an account's role. Dropping a role out of the
// manager set revokes the user's sessions so stale tokens naming the old
// role die with them.
func (s *Service) UpdateUserRole(ctx context.Context, actor Principal, userID string, role Role, meta Meta) (*User, error) {
	if err := s.RequireRole(actor, AdminRoles...); err != nil {
		return nil, err
	}
	if _, ok := ParseRole(string(role)); !ok {
		return nil, ErrInvalidInput
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == RoleSuperAdmin && actor.User.Role != RoleSuperAdmin {
		return nil, ErrForbidden
	}
	if role == RoleSuperAdmin && actor.User.Role != RoleSuperAdmin {
		return nil, ErrForbidden
	}
	if actor.User.ID == user.ID {
		// Self-demotion is a footgun; changing your own role is refused.
		return nil, ErrInvalidInput
	}
	previous := user.Role
	if previous == role {
		return user, nil
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	demoted := HasRole(previous, ManagerRoles...) && !HasRole(role, ManagerRoles...)
	if demoted {
		if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  actor.User.ID,
		ActorEmail:   actor.User.Email,
		Action:       audit.ActionUserUpdated,
		ResourceType: audit.ResourceUser,
		ResourceID:   userID,
		Details: map[string]any{
			"changed":          []string{"role"},
			"previous_role":    string(previous),
			"new_role":         string(role),
			"sessions_revoked": demoted,
		},
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return s.users.Find(ctx, userID)
}

// DeleteUser removes an account and revokes its sessions.
func (s *Service) DeleteUser(ctx context.Context, actor Principal, userID string, meta Meta) error {
	if err := s.RequireRole(actor, AdminRoles...); err != nil {
		return err
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == RoleSuperAdmin && actor.User.Role != RoleSuperAdmin {
		return ErrForbidden
	}
	if actor.User.ID == user.ID {
		return ErrInvalidInput
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  actor.User.ID,
		ActorEmail:   actor.User.Email,
		Action:       audit.ActionUserDeleted,
		ResourceType: audit.ResourceUser,
		ResourceID:   userID,
		Details:      map[string]any{"email": user.Email},
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// QueryAudit exposes the audit trail to administrators.
func (s *Service) QueryAudit(ctx context.Context, actor Principal, f audit.Filter) ([]audit.Entry, error) {
	if err := s.RequireRole(actor, AdminRoles...); err != nil {
		return nil, err
	}
	return s.audit.Query(ctx, f)
}
