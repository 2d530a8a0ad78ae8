package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sentra.dev/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	adminPrefix = "/v1/admin/"
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/register",
	"/v1/auth/forgot-password",
	"/v1/auth/reset-password",
}

// withAuth is the request gate. Every non-public request must present a
// credential: Authorization bearer first, then the session cookie, then the
// fallback header. Tokens are verified, then confirmed against the live
// session; API keys skip sessions but resolve to a live user. For the admin
// namespace the role embedded in the token is checked before any store
// access; that check only rejects early, the handler decides on the live
// role.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		credential := a.extractCredential(r)
		if credential == "" {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		if strings.HasPrefix(credential, "sentra_") {
			principal, err := a.auth.AuthenticateAPIKey(r.Context(), credential)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
			return
		}

		claims, err := a.auth.VerifyToken(credential)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		// Fast fail on the token's role snapshot before touching the
		// database. A forged role cannot slip through: the handler checks
		// the live role again.
		if strings.HasPrefix(r.URL.Path, adminPrefix) && !auth.HasRole(claims.Role, a.managerRoles...) {
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}

		principal, err := a.auth.AuthenticateClaims(r.Context(), claims)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractCredential applies the precedence order. The first source that is
// present wins; a bad value there fails the request even if a later source
// holds a good one.
func (a *API) extractCredential(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
			return strings.TrimSpace(header[len(bearer):])
		}
		return ""
	}
	if cookie, err := r.Cookie(a.cfg.CookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}
	return strings.TrimSpace(r.Header.Get(a.cfg.FallbackHeader))
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// principal returns the authenticated identity or writes a 401.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	return p, true
}

// requireRole finishes an authorization decision on the live principal.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, allowed []auth.Role) (auth.Principal, bool) {
	p, ok := a.principal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if err := a.auth.RequireRole(p, allowed...); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
		} else {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
		}
		return auth.Principal{}, false
	}
	return p, true
}

func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	return a.requireRole(w, r, a.adminRoles)
}

func (a *API) requireManager(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	return a.requireRole(w, r, a.managerRoles)
}
