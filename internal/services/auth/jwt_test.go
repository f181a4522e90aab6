package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "floatr", time.Hour)
	token, expiresAt, err := m.GenerateAccessToken(42, "captain")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "captain" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("unexpected expiry %s want %s", claims.ExpiresAt, expiresAt)
	}
	if id := claims.Identity(); id.UserID != 42 {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("secret", "floatr", time.Minute)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	token, _, err := m.GenerateAccessToken(7, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := m.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}

func TestJWTRejectsForeignSecretAndIssuer(t *testing.T) {
	issuer := NewJWTManager("secret", "floatr", time.Hour)
	token, _, err := issuer.GenerateAccessToken(7, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := NewJWTManager("other", "floatr", time.Hour).ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong secret, got %v", err)
	}
	if _, err := NewJWTManager("secret", "someone-else", time.Hour).ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong issuer, got %v", err)
	}
	if _, err := issuer.ParseAccessToken("   "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for blank token, got %v", err)
	}
}
