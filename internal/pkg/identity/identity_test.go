package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	// Idempotent: same token, same result.
	again, err := v.Verify(token)
	if err != nil || *again != *id {
		t.Fatalf("verification is not idempotent: %+v, %v", again, err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}, testSecret)

	if _, err := v.Verify(token); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, "other-secret")

	if _, err := v.Verify(token); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	for _, token := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := v.Verify(token); !errors.Is(err, apperr.ErrInvalidCredential) {
			t.Fatalf("expected invalid credential for %q, got %v", token, err)
		}
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	if _, err := v.Verify(token); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{"sub": "user-1"}, testSecret)

	if _, err := v.Verify(token); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential for token without exp, got %v", err)
	}
}
