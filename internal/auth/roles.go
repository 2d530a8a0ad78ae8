package auth

import "strings"

// Role is the platform role attached to a user. Gates name their allowed
// roles explicitly; there is no numeric hierarchy to traverse.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSupport    Role = "support"
	RoleCustomer   Role = "customer"
)

// AdminRoles is the default gate for /admin administration endpoints.
var AdminRoles = []Role{RoleSuperAdmin, RoleAdmin}

// ManagerRoles is the default gate for order and support management.
var ManagerRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager}

var allRoles = map[Role]struct{}{
	RoleSuperAdmin: {},
	RoleAdmin:      {},
	RoleManager:    {},
	RoleSupport:    {},
	RoleCustomer:   {},
}

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	_, ok := allRoles[role]
	return role, ok
}

// HasRole reports whether role is a member of the allowed set. Strict set
// membership: HasRole(manager, super_admin, admin) is false.
func HasRole(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// Roles converts config-level role names into typed roles, dropping
// anything unknown.
func Roles(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, name := range names {
		if role, ok := ParseRole(name); ok {
			out = append(out, role)
		}
	}
	return out
}
