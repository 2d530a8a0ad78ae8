package auth

import "errors"

// Error taxonomy for the access-control core. Handlers map these onto HTTP
// statuses in exactly one place; nothing else inspects error strings.
var (
	// ErrUnauthenticated covers every identity failure: missing, invalid or
	// expired token, inactive or mismatched session, wrong credentials.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrForbidden means the identity is valid but its role is outside the
	// required set.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrRateLimited means the attempt budget for the action is exhausted.
	ErrRateLimited = errors.New("auth: too many attempts")

	// ErrInvalidToken indicates a token failed structural, signature or
	// expiry validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrInvalidInput = errors.New("auth: invalid input")
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
)
