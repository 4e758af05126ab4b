package access

import (
	"errors"
	"testing"
	"time"
)

func TestSessionsRoundTrip(t *testing.T) {
	s, err := NewSessions("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	token, exp, err := s.Issue("a@x", RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}
	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "a@x" || claims.Role != RoleUser || claims.Issuer != defaultIssuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionsRejectExpired(t *testing.T) {
	s, _ := NewSessions("secret", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, _, err := s.Issue("a@x", RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := s.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionsRejectForeignSecret(t *testing.T) {
	a, _ := NewSessions("secret-a", time.Hour)
	b, _ := NewSessions("secret-b", time.Hour)
	token, _, _ := a.Issue("a@x", RoleAdmin)
	if _, err := b.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := a.Parse(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestNewSessionsValidation(t *testing.T) {
	if _, err := NewSessions(" ", time.Hour); err == nil {
		t.Fatalf("expected error for blank secret")
	}
	if _, err := NewSessions("s", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "pw"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "nope"); err == nil {
		t.Fatalf("expected mismatch")
	}
	if _, err := HashPassword("", 4); err == nil {
		t.Fatalf("expected error for empty password")
	}
}
