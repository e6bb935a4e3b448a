package security

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "s3cret!"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "nope"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	token, expiresAt, err := GenerateUserToken("secret", time.Hour, 42, "a@b.c")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %s", expiresAt)
	}
	claims, err := ParseUserToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "a@b.c" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseUserToken("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
	if _, err := ParseAdminToken("secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected user token to be rejected as admin token, got %v", err)
	}
}

func TestUserTokenExpired(t *testing.T) {
	token, _, err := GenerateUserToken("secret", -time.Minute, 1, "x@y.z")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseUserToken("secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestAdminToken(t *testing.T) {
	token, _, err := GenerateAdminToken("secret", 7, "root")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAdminToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, _, err := GenerateAdminToken("", 7, "root"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestTOTP(t *testing.T) {
	key, err := GenerateTOTP("NyanPass", "root")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now := time.Now()
	code, err := TOTPCode(key.Secret, now)
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if !ValidateTOTP(key.Secret, code, now) {
		t.Fatalf("expected code to validate")
	}
	if ValidateTOTP(key.Secret, code, now.Add(10*time.Minute)) {
		t.Fatalf("expected stale code to fail")
	}
	if ValidateTOTP("", code, now) {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestRandomCodes(t *testing.T) {
	s, err := GenerateRandomString(12)
	if err != nil || len(s) != 12 {
		t.Fatalf("expected 12 chars, got %q err=%v", s, err)
	}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("code: %v", err)
		}
		if len(code) != 32 {
			t.Fatalf("expected 32 chars, got %d", len(code))
		}
		if seen[code] {
			t.Fatalf("duplicate code %s", code)
		}
		seen[code] = true
	}
}
