package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testIssuer(t *testing.T, now *time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret-at-least-32-bytes-long!!", "sentra", time.Hour, 30*24*time.Hour,
		WithTokenClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, &now)

	user := &User{ID: "user-1", Email: "ops@example.com", Role: RoleManager}
	token, expiresAt, err := issuer.Issue(user, "sess-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := now.Add(time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ops@example.com" || claims.Role != RoleManager || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRememberMeLifetime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, &now)

	_, expiresAt, err := issuer.Issue(&User{ID: "user-1", Role: RoleCustomer}, "sess-1", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := now.Add(30 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, &now)

	token, _, err := issuer.Issue(&User{ID: "user-1", Role: RoleCustomer}, "sess-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(time.Hour + time.Minute)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, &now)

	token, _, err := issuer.Issue(&User{ID: "user-1", Role: RoleCustomer}, "sess-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, &now)

	other, err := NewTokenIssuer("a-completely-different-signing-key!!", "sentra", time.Hour, 30*24*time.Hour,
		WithTokenClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, _, err := other.Issue(&User{ID: "user-1", Role: RoleCustomer}, "sess-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}
}

func TestTokenGarbageInput(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, &now)

	for _, raw := range []string{"", "   ", "not.a.token", "deadbeef"} {
		if _, err := issuer.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}
