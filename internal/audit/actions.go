package audit

import "errors"

// ErrStoreUnavailable is returned by Query when no durable backend is wired.
var ErrStoreUnavailable = errors.New("audit: store unavailable")

// Action names. Every privileged mutation records exactly one of these.
const (
	ActionUserCreated         = "user_created"
	ActionUserUpdated         = "user_updated"
	ActionUserDeleted         = "user_deleted"
	ActionUserLogin           = "user_login"
	ActionUserLogout          = "user_logout"
	ActionUserPasswordChanged = "user_password_changed"
	ActionUserPasswordReset   = "user_password_reset"

	ActionOrderStatusChanged = "order_status_changed"

	ActionAPIKeyCreated = "api_key_created"
	ActionAPIKeyRevoked = "api_key_revoked"
)

// Resource types referenced by audit entries.
const (
	ResourceUser   = "user"
	ResourceOrder  = "order"
	ResourceAPIKey = "api_key"
)
