package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
)

// Identity is the verified result of an externally issued credential.
type Identity struct {
	UserID string
	Email  string
}

// Verifier turns an opaque bearer credential into a stable user identifier.
// Verification is pure: the same token yields the same result until expiry.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier builds a verifier for HS256 tokens signed with the given
// shared secret.
func NewJWTVerifier(secret string) Verifier {
	return &jwtVerifier{secret: []byte(secret)}
}

// NewVerifierFromEnv builds the default verifier from AUTH_JWT_SECRET.
func NewVerifierFromEnv() (Verifier, error) {
	secret := strings.TrimSpace(env.GetEnv("AUTH_JWT_SECRET", ""))
	if secret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is not configured")
	}
	return NewJWTVerifier(secret), nil
}

func (v *jwtVerifier) Verify(token string) (*Identity, error) {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return nil, apperr.ErrInvalidCredential
	}

	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidCredential, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.ErrInvalidCredential
	}

	sub, _ := claims.GetSubject()
	if strings.TrimSpace(sub) == "" {
		return nil, fmt.Errorf("%w: missing subject", apperr.ErrInvalidCredential)
	}

	email, _ := claims["email"].(string)
	return &Identity{UserID: sub, Email: strings.TrimSpace(email)}, nil
}
